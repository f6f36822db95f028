// Package fakeserver is an in-memory nearby backend for tests. It speaks the
// same envelope, pagination and error shapes as the real server.
package fakeserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zfogg/nearby/cli/pkg/api"
)

// BasePath is where the API is mounted.
const BasePath = "/api/v1"

// Server holds the backend state. Exported maps may be seeded directly
// before the server starts; use the helpers afterwards.
type Server struct {
	Router *gin.Engine

	mu            sync.Mutex
	Users         map[string]api.User
	Passwords     map[string]string // email -> password
	Tokens        map[string]string // token -> user id
	Feed          []api.FeedItem
	Comments      map[string][]api.Comment
	Reviews       map[string][]api.Review
	Checkins      map[string][]api.Checkin
	Notifications []api.Notification
	Follows       map[string]map[string]bool // follower -> followee
	Lists         map[string][]api.PlaceList
	Conversations []api.Conversation
	Messages      map[string][]api.Message
	// OmitTotal drops totalCount from list responses.
	OmitTotal bool

	calls map[string]int
	fails map[string]failure
	holds map[string]chan struct{}

	upgrader websocket.Upgrader
	sockets  map[*websocket.Conn]struct{}
	writeMu  sync.Mutex
}

type failure struct {
	status  int
	code    string
	message string
	times   int
}

// New creates an empty server with its routes registered.
func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		Router:    gin.New(),
		Users:     map[string]api.User{},
		Passwords: map[string]string{},
		Tokens:    map[string]string{},
		Comments:  map[string][]api.Comment{},
		Reviews:   map[string][]api.Review{},
		Checkins:  map[string][]api.Checkin{},
		Follows:   map[string]map[string]bool{},
		Lists:     map[string][]api.PlaceList{},
		Messages:  map[string][]api.Message{},
		calls:     map[string]int{},
		fails:     map[string]failure{},
		holds:     map[string]chan struct{}{},
		sockets:   map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Start serves the router on a local listener. Close the returned server
// when done; its URL plus BasePath is the API base URL.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.Router)
}

func (s *Server) setupRoutes() {
	s.Router.Use(s.instrument)
	v1 := s.Router.Group(BasePath)

	v1.POST("/auth/signin", s.signIn)
	v1.POST("/auth/identity", s.identity)
	v1.POST("/auth/register", s.register)
	v1.GET("/ws", s.socket)

	authed := v1.Group("")
	authed.Use(s.authMiddleware)
	authed.GET("/auth/me", s.me)
	authed.GET("/feed", s.feed)
	authed.GET("/feed/:id/comments", s.listComments)
	authed.POST("/feed/:id/comments", s.addComment)
	authed.POST("/activities/:id/reactions", s.addReaction)
	authed.DELETE("/reactions/:id", s.removeReaction)
	authed.GET("/places/:id/reviews", s.listReviews)
	authed.POST("/reviews/:id/like", s.likeReview)
	authed.DELETE("/reviews/:id/like", s.unlikeReview)
	authed.GET("/users/:id/checkins", s.listCheckins)
	authed.GET("/users/:id/lists", s.listLists)
	authed.GET("/users/:id/followers", s.followers)
	authed.GET("/users/:id/following", s.following)
	authed.POST("/users/:id/follow", s.follow)
	authed.DELETE("/users/:id/follow", s.unfollow)
	authed.GET("/notifications", s.listNotifications)
	authed.POST("/notifications/:id/read", s.markRead)
	authed.GET("/conversations", s.listConversations)
	authed.GET("/conversations/:id/messages", s.listMessages)
	authed.POST("/conversations/:id/messages", s.sendMessage)
}

// Route keys look like "GET /feed" or "POST /activities/:id/reactions".
func routeKey(c *gin.Context) string {
	return c.Request.Method + " " + strings.TrimPrefix(c.FullPath(), BasePath)
}

// instrument counts calls, applies held routes and injected failures.
func (s *Server) instrument(c *gin.Context) {
	key := routeKey(c)

	s.mu.Lock()
	s.calls[key]++
	hold := s.holds[key]
	f, failing := s.fails[key]
	if failing {
		f.times--
		if f.times == 0 {
			delete(s.fails, key)
		} else {
			s.fails[key] = f
		}
	}
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if failing {
		c.AbortWithStatusJSON(f.status, api.ErrorResponse{Success: false, Code: f.code, Message: f.message})
		return
	}
	c.Next()
}

// Calls returns how many requests hit route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Fail makes the next times requests to route answer status with message.
// times < 0 fails until Recover.
func (s *Server) Fail(route string, status int, message string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[route] = failure{status: status, code: http.StatusText(status), message: message, times: times}
}

// Recover clears injected failures on route.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fails, route)
}

// Hold makes requests to route wait until the returned func is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// AddUser creates a user with a password and returns a valid token.
func (s *Server) AddUser(u api.User, email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = email
	s.Users[u.ID] = u
	s.Passwords[email] = password
	token := "tok-" + u.ID
	s.Tokens[token] = u.ID
	return token
}

func (s *Server) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")

	s.mu.Lock()
	userID, ok := s.Tokens[token]
	s.mu.Unlock()

	if header == "" || !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Code: "unauthorized", Message: "invalid or expired token"})
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func reject(c *gin.Context, status int, code, message string) {
	c.JSON(status, api.ErrorResponse{Success: false, Code: code, Message: message})
}

// paginate returns the requested window of items with its pagination block.
func paginate[T any](s *Server, c *gin.Context, items []T) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	window := make([]T, end-start)
	copy(window, items[start:end])

	p := gin.H{"page": page, "limit": limit}
	if !s.OmitTotal {
		p["totalCount"] = len(items)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": window, "pagination": p})
}

func (s *Server) session(userID string) api.Session {
	token := "tok-" + uuid.NewString()
	s.Tokens[token] = userID
	return api.Session{AccessToken: token, RefreshToken: "refresh-" + userID, ExpiresIn: 3600, User: s.Users[userID]}
}

func (s *Server) signIn(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reject(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pw, found := s.Passwords[req.Email]; !found || pw != req.Password {
		reject(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	for id, u := range s.Users {
		if u.Email == req.Email {
			respond(c, http.StatusOK, s.session(id))
			return
		}
	}
	reject(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
}

func (s *Server) identity(c *gin.Context) {
	var req api.IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" || req.Nonce == "" {
		reject(c, http.StatusUnprocessableEntity, "invalid_identity", "identity token and nonce are required")
		return
	}
	if req.Provider != "apple" && req.Provider != "google" {
		// 2xx with success:false is how the server reports domain rejections
		reject(c, http.StatusOK, "unsupported_provider", "sign-in provider not supported")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := req.Provider + "-" + req.IDToken
	if _, found := s.Users[id]; !found {
		s.Users[id] = api.User{ID: id, Username: id}
	}
	respond(c, http.StatusOK, s.session(id))
}

func (s *Server) register(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reject(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.Users {
		if u.Username == req.Username {
			reject(c, http.StatusConflict, "username_taken", "username already taken")
			return
		}
	}
	id := "u-" + uuid.NewString()
	s.Users[id] = api.User{ID: id, Username: req.Username, DisplayName: req.DisplayName, Email: req.Email}
	s.Passwords[req.Email] = req.Password
	respond(c, http.StatusCreated, s.session(id))
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respond(c, http.StatusOK, s.Users[c.GetString("user_id")])
}

func (s *Server) feed(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.FeedItem(nil), s.Feed...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) findActivity(id string) int {
	for i, it := range s.Feed {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) listComments(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.Comment(nil), s.Comments[c.Param("id")]...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) addComment(c *gin.Context) {
	var body struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Body) == "" {
		reject(c, http.StatusUnprocessableEntity, "empty_comment", "comment body is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	activityID := c.Param("id")
	i := s.findActivity(activityID)
	if i < 0 {
		reject(c, http.StatusNotFound, "not_found", "activity not found")
		return
	}
	comment := api.Comment{
		ID:         "c-" + uuid.NewString(),
		ActivityID: activityID,
		Author:     s.Users[c.GetString("user_id")],
		Body:       body.Body,
		CreatedAt:  time.Now().UTC(),
	}
	// newest first
	s.Comments[activityID] = append([]api.Comment{comment}, s.Comments[activityID]...)
	s.Feed[i].CommentCount++
	respond(c, http.StatusCreated, comment)
}

func (s *Server) addReaction(c *gin.Context) {
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Emoji == "" {
		reject(c, http.StatusUnprocessableEntity, "invalid_emoji", "emoji is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findActivity(c.Param("id"))
	if i < 0 {
		reject(c, http.StatusNotFound, "not_found", "activity not found")
		return
	}
	userID := c.GetString("user_id")
	for _, r := range s.Feed[i].Reactions {
		if r.UserID == userID && r.Emoji == body.Emoji {
			reject(c, http.StatusConflict, "already_reacted", "already reacted with "+body.Emoji)
			return
		}
	}
	reaction := api.Reaction{
		ID:         "r-" + uuid.NewString(),
		ActivityID: s.Feed[i].ID,
		UserID:     userID,
		Emoji:      body.Emoji,
		CreatedAt:  time.Now().UTC(),
	}
	s.Feed[i].Reactions = append(s.Feed[i].Reactions, reaction)
	respond(c, http.StatusCreated, reaction)
}

func (s *Server) removeReaction(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	for i := range s.Feed {
		for j, r := range s.Feed[i].Reactions {
			if r.ID == id {
				s.Feed[i].Reactions = append(s.Feed[i].Reactions[:j], s.Feed[i].Reactions[j+1:]...)
				c.Status(http.StatusNoContent)
				return
			}
		}
	}
	reject(c, http.StatusNotFound, "not_found", "reaction not found")
}

func (s *Server) listReviews(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.Review(nil), s.Reviews[c.Param("id")]...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) setLike(c *gin.Context, liked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	for place, reviews := range s.Reviews {
		for i, r := range reviews {
			if r.ID != id {
				continue
			}
			if r.Liked != liked {
				r.Liked = liked
				if liked {
					r.LikeCount++
				} else {
					r.LikeCount--
				}
				s.Reviews[place][i] = r
			}
			respond(c, http.StatusOK, r)
			return
		}
	}
	reject(c, http.StatusNotFound, "not_found", "review not found")
}

func (s *Server) likeReview(c *gin.Context)   { s.setLike(c, true) }
func (s *Server) unlikeReview(c *gin.Context) { s.setLike(c, false) }

func (s *Server) listCheckins(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.Checkin(nil), s.Checkins[c.Param("id")]...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) listLists(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.PlaceList(nil), s.Lists[c.Param("id")]...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) connection(viewer, other string) api.Connection {
	return api.Connection{
		User:      s.Users[other],
		Following: s.Follows[viewer][other],
		FollowsMe: s.Follows[other][viewer],
	}
}

func (s *Server) followers(c *gin.Context) {
	s.mu.Lock()
	viewer, target := c.GetString("user_id"), c.Param("id")
	var items []api.Connection
	for follower, followees := range s.Follows {
		if followees[target] {
			items = append(items, s.connection(viewer, follower))
		}
	}
	s.mu.Unlock()
	sortConnections(items)
	paginate(s, c, items)
}

func (s *Server) following(c *gin.Context) {
	s.mu.Lock()
	viewer, target := c.GetString("user_id"), c.Param("id")
	var items []api.Connection
	for followee, on := range s.Follows[target] {
		if on {
			items = append(items, s.connection(viewer, followee))
		}
	}
	s.mu.Unlock()
	sortConnections(items)
	paginate(s, c, items)
}

func sortConnections(items []api.Connection) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].User.ID < items[j-1].User.ID; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func (s *Server) setFollow(c *gin.Context, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	viewer, target := c.GetString("user_id"), c.Param("id")
	if _, found := s.Users[target]; !found {
		reject(c, http.StatusNotFound, "not_found", "user not found")
		return
	}
	if viewer == target {
		reject(c, http.StatusUnprocessableEntity, "self_follow", "you cannot follow yourself")
		return
	}
	if s.Follows[viewer] == nil {
		s.Follows[viewer] = map[string]bool{}
	}
	if on {
		s.Follows[viewer][target] = true
	} else {
		delete(s.Follows[viewer], target)
	}
	respond(c, http.StatusOK, s.connection(viewer, target))
}

func (s *Server) follow(c *gin.Context)   { s.setFollow(c, true) }
func (s *Server) unfollow(c *gin.Context) { s.setFollow(c, false) }

func (s *Server) listNotifications(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.Notification(nil), s.Notifications...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) markRead(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.Notifications {
		if n.ID == c.Param("id") {
			s.Notifications[i].Read = true
			respond(c, http.StatusOK, s.Notifications[i])
			return
		}
	}
	reject(c, http.StatusNotFound, "not_found", "notification not found")
}

func (s *Server) listConversations(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.Conversation(nil), s.Conversations...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) listMessages(c *gin.Context) {
	s.mu.Lock()
	items := append([]api.Message(nil), s.Messages[c.Param("id")]...)
	s.mu.Unlock()
	paginate(s, c, items)
}

func (s *Server) sendMessage(c *gin.Context) {
	var body struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Body == "" {
		reject(c, http.StatusUnprocessableEntity, "empty_message", "message body is required")
		return
	}

	s.mu.Lock()
	conv := c.Param("id")
	msg := api.Message{
		ID:             "m-" + uuid.NewString(),
		ConversationID: conv,
		AuthorID:       c.GetString("user_id"),
		Body:           body.Body,
		CreatedAt:      time.Now().UTC(),
	}
	s.Messages[conv] = append([]api.Message{msg}, s.Messages[conv]...)
	s.mu.Unlock()

	s.Broadcast(gin.H{"type": "message.added", "conversationId": conv, "message": msg})
	respond(c, http.StatusCreated, msg)
}

// socket upgrades to a websocket that receives everything Broadcast sends.
func (s *Server) socket(c *gin.Context) {
	s.mu.Lock()
	_, valid := s.Tokens[c.Query("token")]
	s.mu.Unlock()
	if !valid {
		reject(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.sockets[conn] = struct{}{}
	s.mu.Unlock()

	// drain client frames (heartbeats) until the peer goes away
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.sockets, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ForgetMessage deletes a message without telling connected sockets, as if
// the removal event was missed.
func (s *Server) ForgetMessage(conv, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.Messages[conv]
	for i, m := range msgs {
		if m.ID == id {
			s.Messages[conv] = append(msgs[:i:i], msgs[i+1:]...)
			return
		}
	}
}

// Sockets returns the number of connected websocket clients.
func (s *Server) Sockets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sockets)
}

// Broadcast sends v as JSON to every connected socket.
func (s *Server) Broadcast(v interface{}) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.sockets))
	for conn := range s.sockets {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteJSON(v); err != nil {
			fmt.Printf("fakeserver: broadcast failed: %v\n", err)
		}
	}
}

// DropSockets closes every connected socket from the server side.
func (s *Server) DropSockets() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.sockets {
		conn.Close()
		delete(s.sockets, conn)
	}
}
