package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"riderBack/internal/shipment/repo"
)

const minPasswordLength = 6

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "login and password are required")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	rider, err := s.deps.Riders.GetByLogin(ctx, req.Login)
	if errors.Is(err, repo.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Errorf("shipment: load rider for login failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rider.PasswordHash), []byte(req.Password)); err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.deps.Tokens.NewJWT(rider.ID, rider.Role, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Errorf("shipment: sign token for rider %s failed: %v", rider.ID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}
	s.writeData(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"rider": toRiderResponse(rider),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	rider, ok := s.loadRider(ctx, w, id.RiderID)
	if !ok {
		return
	}
	s.writeData(w, http.StatusOK, toRiderResponse(rider))
}

// handleChangePassword takes the app payload {password, confirmPassword}. A
// currentPassword, when sent, must match the stored hash.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
		CurrentPassword string `json:"currentPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Password) < minPasswordLength {
		s.writeError(w, http.StatusBadRequest, "password is too short")
		return
	}
	if req.Password != req.ConfirmPassword {
		s.writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	rider, ok := s.loadRider(ctx, w, id.RiderID)
	if !ok {
		return
	}
	if req.CurrentPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(rider.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			s.writeError(w, http.StatusBadRequest, "current password is incorrect")
			return
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Errorf("shipment: hash password failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	if err := s.deps.Riders.UpdatePassword(ctx, id.RiderID, string(hash)); err != nil {
		s.logger.Errorf("shipment: update password for %s failed: %v", id.RiderID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	s.writeMessage(w, http.StatusOK, "password updated", nil)
}

// handleUpdateProfile applies a partial profile update. Absent fields keep their
// stored value.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		FirstName    *string `json:"firstName"`
		LastName     *string `json:"lastName"`
		PhoneNo      *string `json:"phoneNo"`
		UserName     *string `json:"userName"`
		ProfileImage *string `json:"profileImage"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	rider, ok := s.loadRider(ctx, w, id.RiderID)
	if !ok {
		return
	}
	p := repo.Profile{
		Name:      rider.Name,
		FirstName: rider.FirstName.String,
		LastName:  rider.LastName.String,
		UserName:  rider.UserName.String,
		Phone:     rider.Phone,
		AvatarURL: rider.AvatarURL.String,
	}
	if req.FirstName != nil {
		p.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		p.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.UserName != nil {
		p.UserName = strings.TrimSpace(*req.UserName)
	}
	if req.ProfileImage != nil {
		p.AvatarURL = strings.TrimSpace(*req.ProfileImage)
	}
	if req.PhoneNo != nil {
		phone := strings.TrimSpace(*req.PhoneNo)
		if phone == "" {
			s.writeError(w, http.StatusBadRequest, "phoneNo cannot be empty")
			return
		}
		if phone != rider.Phone {
			other, err := s.deps.Riders.GetByLogin(ctx, phone)
			switch {
			case err == nil && other.ID != rider.ID:
				s.writeError(w, http.StatusConflict, "phoneNo is already in use")
				return
			case err != nil && !errors.Is(err, repo.ErrNotFound):
				s.logger.Errorf("shipment: check phone for %s failed: %v", rider.ID, err)
				s.writeError(w, http.StatusInternalServerError, "failed to update profile")
				return
			}
		}
		p.Phone = phone
	}
	if full := strings.TrimSpace(p.FirstName + " " + p.LastName); full != "" {
		p.Name = full
	}

	if err := s.deps.Riders.UpdateProfile(ctx, rider.ID, p); err != nil {
		s.logger.Errorf("shipment: update profile for %s failed: %v", rider.ID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	updated, ok := s.loadRider(ctx, w, rider.ID)
	if !ok {
		return
	}
	s.writeData(w, http.StatusOK, toRiderResponse(updated))
}

func (s *Server) loadRider(ctx context.Context, w http.ResponseWriter, riderID string) (repo.Rider, bool) {
	rider, err := s.deps.Riders.Get(ctx, riderID)
	if errors.Is(err, repo.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "rider not found")
		return repo.Rider{}, false
	}
	if err != nil {
		s.logger.Errorf("shipment: load rider %s failed: %v", riderID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load profile")
		return repo.Rider{}, false
	}
	return rider, true
}

func (s *Server) handleFCMToken(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		s.writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	if err := s.deps.Riders.UpdateFCMToken(ctx, id.RiderID, req.Token); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "rider not found")
			return
		}
		s.logger.Errorf("shipment: store fcm token for %s failed: %v", id.RiderID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to store token")
		return
	}
	s.writeData(w, http.StatusOK, map[string]bool{"updated": true})
}
