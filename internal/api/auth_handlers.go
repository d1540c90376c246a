package api

import (
	"net/http"
	"strconv"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
)

func loginHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		sess, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, LoginResponse{
			Token:     sess.Token,
			ExpiresAt: sess.ExpiresAt,
			UserID:    sess.UserID,
			Role:      string(sess.Role),
		})
	}
}

func registerHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		role := auth.RoleCustomer
		if req.Role != "" {
			parsed, err := auth.ParseRole(req.Role)
			if err != nil {
				writeServiceError(w, r, apperr.Validation("%v", err))
				return
			}
			role = parsed
		}

		u, err := svc.Register(r.Context(), auth.RegisterInput{
			Username: req.Username,
			Password: req.Password,
			Email:    req.Email,
			Phone:    req.Phone,
			RealName: req.RealName,
			Role:     role,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUserResponse(u))
	}
}

func userStatusHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		var req UserStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		if err := svc.SetUserActive(r.Context(), id, req.Active); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func profileHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.Profile(r.Context(), principal(r).UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func updateProfileHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		u, err := svc.UpdateProfile(r.Context(), principal(r).UserID, auth.ProfileInput{
			Email:    req.Email,
			Phone:    req.Phone,
			RealName: req.RealName,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

// listUsersHandler accepts role, keyword and active (true/false) filters.
func listUsersHandler(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := auth.UserFilter{Keyword: q.Get("keyword")}
		if raw := q.Get("role"); raw != "" {
			role, err := auth.ParseRole(raw)
			if err != nil {
				writeServiceError(w, r, apperr.Validation("%v", err))
				return
			}
			f.Role = &role
		}
		if raw := q.Get("active"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				writeServiceError(w, r, apperr.Validation("invalid active %q", raw))
				return
			}
			f.Active = &active
		}
		page := queryPage(r)

		users, total, err := svc.ListUsers(r.Context(), f, page)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse(mapSlice(users, func(u auth.User) UserResponse {
			return toUserResponse(&u)
		}), total, page))
	}
}
