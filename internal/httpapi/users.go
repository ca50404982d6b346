package httpapi

import "net/http"

func (s *Server) postUser(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeyPostUser).(postUserRequest)
	if !ok {
		writeErr(w, http.StatusInternalServerError, "validated request missing", "internal_error")
		return
	}
	u, err := s.accountSvc.CreateUser(r.Context(), req.Name)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.querySvc.ListUsers(r.Context())
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	u, err := s.querySvc.GetUser(r.Context(), id)
	if err != nil {
		s.writeLedgerErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponse(u))
}
