package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JeanGrijp/joker/internal/core/domain"
	"github.com/JeanGrijp/joker/internal/core/services"
)

type UserService interface {
	Create(ctx context.Context, in services.CreateUserInput) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	List(ctx context.Context, page, pageSize int) ([]domain.User, int, error)
	Update(ctx context.Context, id string, update domain.UserUpdate) (domain.User, error)
	Delete(ctx context.Context, id string) (domain.User, error)
}

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

type userResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type createUserResponse struct {
	User   userResponse `json:"user"`
	Status string       `json:"status"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	in := services.CreateUserInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Role != "" {
		role, ok := domain.ParseRole(req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role "+strconv.Quote(req.Role), "")
			return
		}
		in.Role = role
	}

	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createUserResponse{User: toUserResponse(user), Status: "User created successfully."})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type listUsersResponse struct {
	Users    []userResponse `json:"users"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// List aceita os parâmetros opcionais page e page_size.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be a number", "")
		return
	}
	pageSize, err := queryInt(r, "page_size", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be a number", "")
		return
	}

	users, total, err := h.users.List(r.Context(), page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := listUsersResponse{Users: make([]userResponse, 0, len(users)), Total: total, Page: page, PageSize: pageSize}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

type updateUserResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	update := domain.UserUpdate{Username: req.Name, Email: req.Email}
	if req.Role != nil {
		role, ok := domain.ParseRole(*req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role "+strconv.Quote(*req.Role), "")
			return
		}
		update.Role = &role
	}

	user, err := h.users.Update(r.Context(), chi.URLParam(r, "userId"), update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateUserResponse{Success: true, Message: "User updated successfully.", User: toUserResponse(user)})
}

type deleteUserResponse struct {
	Message string `json:"message"`
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Delete(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteUserResponse{Message: "User " + user.ID + " deleted successfully."})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
