package gateway

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"roomchat/auth"
	"roomchat/domain"
	"roomchat/errors"
)

// Handler exposes the JSON surface consumed by clients: auth, room
// administration, paginated history, and the websocket upgrade.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", g.handleRegister)
	mux.HandleFunc("POST /login", g.handleLogin)
	mux.HandleFunc("GET /ws", g.handleWebsocket)
	mux.HandleFunc("GET /rooms", g.handleListRooms)
	mux.HandleFunc("POST /rooms", g.handleCreateRoom)
	mux.HandleFunc("PUT /rooms/{id}", g.handleRenameRoom)
	mux.HandleFunc("DELETE /rooms/{id}", g.handleDeleteRoom)
	mux.HandleFunc("GET /rooms/{id}/members", g.handleListMembers)
	mux.HandleFunc("POST /rooms/{id}/members", g.handleAddMembers)
	mux.HandleFunc("DELETE /rooms/{id}/members", g.handleRemoveMembers)
	mux.HandleFunc("GET /rooms/{id}/messages", g.handleHistory)
	return mux
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := g.authProvider.Register(req.Username, req.Email, req.Password)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, errors.ErrUserAlreadyExists.Error())
		return
	default:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := auth.GenerateToken(userID, req.Username, g.tokenDuration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrTokenGeneration.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := g.authProvider.Verify(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.ErrInvalidCredentials.Error())
		return
	}

	token, err := auth.GenerateToken(userID, req.Username, g.tokenDuration)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrTokenGeneration.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// handleWebsocket upgrades an authenticated request and starts the
// read/write pumps. The token travels as a query parameter because
// browsers cannot set headers on websocket dials.
func (g *Gateway) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	claims, err := g.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error("websocket upgrade failed", "username", claims.Username, "error", err)
		return
	}
	g.log.Info("websocket connected", "username", claims.Username, "remote", r.RemoteAddr)

	c := g.newClient(conn, claims.Username)
	go c.writePump()
	go c.readPump()
}

type roomResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

func (g *Gateway) handleListRooms(w http.ResponseWriter, r *http.Request) {
	claims, err := g.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	rooms, err := g.membership.RoomsForUser(claims.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(rooms, func(room domain.Room, _ int) roomResponse {
		return roomResponse{ID: int64(room.ID), Name: room.Name, CreatedBy: room.CreatedBy}
	}))
}

type createRoomRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

// handleCreateRoom creates the room and then bulk-adds the requested
// members. The creator is filtered out of the member list because the
// atomic creation already inserted their admin membership.
func (g *Gateway) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, err := g.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "room name required")
		return
	}

	roomID, err := g.membership.CreateRoom(req.Name, claims.Username)
	if err != nil || roomID == 0 {
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	members := lo.Filter(req.Members, func(username string, _ int) bool {
		return username != claims.Username
	})
	added, err := g.membership.AddMembers(roomID, members, claims.Username)
	if err != nil {
		g.log.Warn("partial member add on room creation", "room_id", roomID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":    int64(roomID),
		"added": lo.Map(added, func(m domain.Membership, _ int) string { return m.Username }),
	})
}

type renameRoomRequest struct {
	Name string `json:"name"`
}

func (g *Gateway) handleRenameRoom(w http.ResponseWriter, r *http.Request) {
	claims, roomID, ok := g.authenticateRoom(w, r)
	if !ok {
		return
	}

	var req renameRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "room name required")
		return
	}

	renamed, err := g.membership.RenameRoom(roomID, claims.Username, req.Name)
	if err == errors.ErrUnauthorized {
		writeError(w, http.StatusForbidden, errors.ErrUnauthorized.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return
	}
	if !renamed {
		writeError(w, http.StatusNotFound, errors.ErrRoomNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	claims, roomID, ok := g.authenticateRoom(w, r)
	if !ok {
		return
	}

	deleted, err := g.membership.DeleteRoom(roomID, claims.Username)
	if err == errors.ErrUnauthorized {
		writeError(w, http.StatusForbidden, errors.ErrUnauthorized.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, errors.ErrRoomNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type memberResponse struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	AddedBy  string `json:"added_by"`
}

func (g *Gateway) handleListMembers(w http.ResponseWriter, r *http.Request) {
	claims, roomID, ok := g.authenticateRoom(w, r)
	if !ok {
		return
	}
	if !g.requireMember(w, roomID, claims.Username) {
		return
	}

	members, err := g.membership.Members(roomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(members, func(m domain.Membership, _ int) memberResponse {
		return memberResponse{Username: m.Username, IsAdmin: m.IsAdmin, AddedBy: m.AddedBy}
	}))
}

type memberListRequest struct {
	Usernames []string `json:"usernames"`
}

func (g *Gateway) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	claims, roomID, ok := g.authenticateRoom(w, r)
	if !ok {
		return
	}
	if !g.requireAdmin(w, roomID, claims.Username) {
		return
	}

	var req memberListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	added, err := g.membership.AddMembers(roomID, req.Usernames, claims.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"added": lo.Map(added, func(m domain.Membership, _ int) string { return m.Username }),
	})
}

func (g *Gateway) handleRemoveMembers(w http.ResponseWriter, r *http.Request) {
	claims, roomID, ok := g.authenticateRoom(w, r)
	if !ok {
		return
	}
	if !g.requireAdmin(w, roomID, claims.Username) {
		return
	}

	var req memberListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := g.membership.RemoveMembers(roomID, req.Usernames); err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyItem struct {
	ID        int64  `json:"id"`
	Room      int64  `json:"room"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// handleHistory serves one backward-indexed page of room history,
// oldest first within the page. Member-gated, pure persistence read.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	claims, roomID, ok := g.authenticateRoom(w, r)
	if !ok {
		return
	}
	if !g.requireMember(w, roomID, claims.Username) {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	messages, err := g.messages.History(roomID, page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, func(m domain.Message, _ int) historyItem {
		return historyItem{
			ID:        m.ID,
			Room:      int64(m.RoomID),
			Sender:    m.Sender,
			Text:      m.Text,
			CreatedAt: m.DisplayTime(),
		}
	}))
}

func (g *Gateway) authenticate(r *http.Request) (*auth.CustomClaims, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	return auth.ValidateToken(token)
}

func (g *Gateway) authenticateRoom(w http.ResponseWriter, r *http.Request) (*auth.CustomClaims, domain.RoomID, bool) {
	claims, err := g.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return nil, 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return nil, 0, false
	}
	return claims, domain.RoomID(id), true
}

func (g *Gateway) requireMember(w http.ResponseWriter, roomID domain.RoomID, username string) bool {
	member, err := g.membership.IsMember(roomID, username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return false
	}
	if !member {
		writeError(w, http.StatusNotFound, errors.ErrRoomNotFound.Error())
		return false
	}
	return true
}

func (g *Gateway) requireAdmin(w http.ResponseWriter, roomID domain.RoomID, username string) bool {
	admin, err := g.membership.IsAdmin(roomID, username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.ErrPersistence.Error())
		return false
	}
	if !admin {
		writeError(w, http.StatusForbidden, errors.ErrUnauthorized.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
