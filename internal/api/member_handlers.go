package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/member"
)

func listLevelsHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		levels, err := svc.ListLevels(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, mapSlice(levels, toLevelResponse))
	}
}

func myMemberHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.MemberInfo(r.Context(), principal(r).UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMemberResponse(info))
	}
}

func myExperienceHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryPage(r)
		list, total, err := svc.ExperienceRecords(r.Context(), principal(r).UserID, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(list, toExperienceRecordResponse), total, page))
	}
}

// myDiscountHandler previews the member price of ?amount=.
func myDiscountHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
		if err != nil || amount.IsNegative() {
			writeServiceError(w, r, apperr.Validation("amount must be a non-negative number"))
			return
		}
		discounted, err := svc.CalculateDiscount(r.Context(), principal(r).UserID, amount)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, DiscountResponse{Amount: amount, Discounted: discounted})
	}
}

func addExperienceHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r, "userID")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req ExperienceChangeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		m, err := svc.AddExperience(r.Context(), userID, req.Points, member.RecordManual, nil, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMemberTotals(m))
	}
}

func deductExperienceHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r, "userID")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req ExperienceChangeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		m, err := svc.DeductExperience(r.Context(), userID, req.Points, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMemberTotals(m))
	}
}

func adjustExperienceHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r, "userID")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req ExperienceChangeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		m, err := svc.AdjustExperience(r.Context(), userID, req.Points, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toMemberTotals(m))
	}
}

func reconcileMemberHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r, "userID")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		res, err := svc.Reconcile(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ReconcileResponse{
			Member:  toMemberTotals(res.Member),
			Before:  res.Before,
			Drifted: res.Drifted,
		})
	}
}

func saveLevelHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LevelRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		l, err := svc.SaveLevel(r.Context(), member.Level{
			ID:            req.ID,
			Name:          req.Name,
			MinExperience: req.MinExperience,
			DiscountRate:  req.DiscountRate,
			Benefits:      req.Benefits,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		status := http.StatusCreated
		if req.ID != 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, toLevelResponse(*l))
	}
}

func deleteLevelHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := svc.DeleteLevel(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func memberStatsHandler(svc MemberService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.MemberStats(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, MemberStatsResponse{TotalMembers: stats.TotalMembers, PerLevel: stats.PerLevel})
	}
}
