package api

import (
	"net/http"
)

func shopReviewsHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		page := queryPage(r)
		list, total, err := svc.ShopReviews(r.Context(), shopID, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toReviewResponse), total, page))
	}
}

func shopReviewStatsHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopID, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		stats, err := svc.ShopReviewStats(r.Context(), shopID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ReviewStatsResponse{
			Count:        stats.Count,
			Average:      stats.Average,
			Distribution: stats.Distribution,
		})
	}
}

func createReviewHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReviewRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		rv, err := svc.CreateReview(r.Context(), principal(r).UserID, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReviewResponse(*rv))
	}
}

func getReviewHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		rv, err := svc.GetReview(r.Context(), principal(r), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toReviewResponse(*rv))
	}
}

func updateReviewHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req ReviewRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		rv, err := svc.UpdateReview(r.Context(), principal(r).UserID, id, req.input())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toReviewResponse(*rv))
	}
}

func deleteReviewHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := svc.DeleteReview(r.Context(), principal(r), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func myReviewsHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryPage(r)
		list, total, err := svc.UserReviews(r.Context(), principal(r).UserID, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toReviewResponse), total, page))
	}
}

func replyReviewHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req ReplyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		rv, err := svc.ReplyReview(r.Context(), principal(r), id, req.Reply)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toReviewResponse(*rv))
	}
}

func reviewVisibilityHandler(svc ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req VisibilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		rv, err := svc.SetVisibility(r.Context(), id, req.Visible)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toReviewResponse(*rv))
	}
}
