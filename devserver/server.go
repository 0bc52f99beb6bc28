// Package devserver is an in-memory stand-in for the Side Quest backend,
// used by the `devserver` command and by integration tests. It mirrors the
// production REST surface and progression rules; it is a development
// fixture, not the backend.
package devserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"

	"sideQuest/api"
	"sideQuest/generator"
	"sideQuest/set"
)

// TokenLifetime bounds minted session tokens.
const TokenLifetime = 30 * time.Minute

// Signing key for dev tokens. Never used outside local development.
const devSigningSecret = "side-quest-dev-secret"

type userRecord struct {
	api.User
	password string
}

type Server struct {
	secret []byte

	mu          sync.Mutex
	users       map[string]*userRecord
	adventurers map[string]*api.Adventurer
	quests      map[string]*api.Quest
	completions map[string]*set.Set[string]
}

func New() *Server {
	return &Server{
		secret:      []byte(devSigningSecret),
		users:       make(map[string]*userRecord),
		adventurers: make(map[string]*api.Adventurer),
		quests:      make(map[string]*api.Quest),
		completions: make(map[string]*set.Set[string]),
	}
}

// Router assembles the gin engine with the full REST surface under /api/v1.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", s.register)
	v1.POST("/auth/login", s.login)

	authed := v1.Group("")
	authed.Use(s.requireAuth)
	authed.POST("/auth/logout", s.logout)
	authed.GET("/auth/me", s.me)
	authed.PUT("/user/:id", s.updateUser)

	authed.GET("/adventurers", s.listAdventurers)
	authed.POST("/adventurer", s.createAdventurer)
	authed.GET("/adventurer/:id", s.getAdventurer)
	authed.POST("/adventurer/:id/quest/:questId", s.completeQuest)

	authed.GET("/quests/:adventurerId", s.listQuests)
	authed.POST("/quest", s.createQuest)
	authed.GET("/quest/:id", s.getQuest)
	authed.PUT("/quest/:id", s.updateQuest)
	authed.DELETE("/quest/:id", s.deleteQuest)

	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	slog.With("addr", addr).Info("starting Side Quest dev server")
	return s.Router().Run(addr)
}

// Seed creates a demo account with one adventurer so a fresh dev server has
// something to show. Returns the demo credentials.
func (s *Server) Seed() (username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, password = "demo", "demo-password"
	user := &userRecord{
		User: api.User{
			ID:        uuid.NewString(),
			Username:  username,
			Email:     "demo@side-quest.local",
			CreatedAt: now(),
			UpdatedAt: now(),
		},
		password: password,
	}
	s.users[user.ID] = user

	adv := &api.Adventurer{
		ID:             uuid.NewString(),
		Name:           generator.AdventurerName(),
		Level:          1,
		AdventurerType: api.DefaultAdventurerType,
		UserID:         user.ID,
	}
	s.adventurers[adv.ID] = adv
	s.completions[adv.ID] = set.New[string]()
	return username, password
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func fail(c *gin.Context, status int, message, code string) {
	c.JSON(status, gin.H{"message": message, "code": code})
}

// --- auth ---

func (s *Server) mintToken(userID string) (string, error) {
	tok := jwt.New()
	if err := tok.Set(jwt.SubjectKey, userID); err != nil {
		return "", err
	}
	if err := tok.Set(jwt.IssuedAtKey, time.Now()); err != nil {
		return "", err
	}
	if err := tok.Set(jwt.ExpirationKey, time.Now().Add(TokenLifetime)); err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwa.HS256, s.secret)
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// bearerToken extracts a JWS from an Authorization: Bearer <jws> header.
func bearerToken(r *http.Request) (string, error) {
	authHdr := r.Header.Get("Authorization")
	if authHdr == "" {
		return "", fmt.Errorf("authorization header is missing")
	}
	prefix := "Bearer "
	if !strings.HasPrefix(authHdr, prefix) {
		return "", fmt.Errorf("authorization header is malformed")
	}
	return strings.TrimPrefix(authHdr, prefix), nil
}

func (s *Server) requireAuth(c *gin.Context) {
	raw, err := bearerToken(c.Request)
	if err != nil {
		fail(c, http.StatusUnauthorized, err.Error(), api.CodeUnauthorized)
		c.Abort()
		return
	}
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithVerify(jwa.HS256, s.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid or expired token", api.CodeUnauthorized)
		c.Abort()
		return
	}

	s.mu.Lock()
	_, ok := s.users[tok.Subject()]
	s.mu.Unlock()
	if !ok {
		fail(c, http.StatusUnauthorized, "unknown session user", api.CodeUnauthorized)
		c.Abort()
		return
	}
	c.Set("user_id", tok.Subject())
	c.Next()
}

func sessionUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func (s *Server) register(c *gin.Context) {
	var req api.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid registration payload", "")
		return
	}
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		fail(c, http.StatusBadRequest, "username, email, and a password of at least 8 characters are required", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == req.Username {
			fail(c, http.StatusBadRequest, "Username already registered", "")
			return
		}
		if u.Email == req.Email {
			fail(c, http.StatusBadRequest, "Email already registered", "")
			return
		}
	}

	user := &userRecord{
		User: api.User{
			ID:        uuid.NewString(),
			Username:  req.Username,
			Email:     req.Email,
			CreatedAt: now(),
			UpdatedAt: now(),
		},
		password: req.Password,
	}
	s.users[user.ID] = user

	token, err := s.mintToken(user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to mint token", "")
		return
	}
	c.JSON(http.StatusCreated, api.RegistrationResponse{User: user.User, AuthToken: token})
}

func (s *Server) login(c *gin.Context) {
	// OAuth2-style form credentials, with a JSON fallback for convenience.
	var username, password string
	if strings.Contains(c.ContentType(), "json") {
		var req api.LoginRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			username, password = req.Username, req.Password
		}
	} else {
		username = c.PostForm("username")
		password = c.PostForm("password")
	}

	s.mu.Lock()
	var user *userRecord
	for _, u := range s.users {
		if u.Username == username {
			user = u
			break
		}
	}
	s.mu.Unlock()

	if user == nil || user.password != password {
		fail(c, http.StatusUnauthorized, "Incorrect username or password", api.CodeUnauthorized)
		return
	}
	token, err := s.mintToken(user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to mint token", "")
		return
	}
	c.JSON(http.StatusOK, api.LoginResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) logout(c *gin.Context) {
	// Tokens are stateless here; logout is an acknowledgement.
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Logged out"})
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[sessionUserID(c)]
	view := user.User
	view.Adventurers = s.adventurerViewsLocked(user.ID)
	c.JSON(http.StatusOK, view)
}

func (s *Server) updateUser(c *gin.Context) {
	if c.Param("id") != sessionUserID(c) {
		fail(c, http.StatusForbidden, "cannot update another user", "")
		return
	}
	var update api.UserUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, "invalid update payload", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[sessionUserID(c)]
	if update.Username != nil {
		user.Username = *update.Username
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.Password != nil {
		user.password = *update.Password
	}
	user.UpdatedAt = now()
	c.JSON(http.StatusOK, api.UserEnvelope{User: user.User, Message: "User updated"})
}

// --- adventurers ---

// adventurerViewLocked fills in the server-computed progression fields.
func (s *Server) adventurerViewLocked(adv *api.Adventurer) api.Adventurer {
	view := *adv
	required := adv.Level * 100
	view.ExperienceForNextLevel = required

	progress := 100.0
	if required > 0 {
		progress = float64(adv.Experience) / float64(required) * 100
	}
	view.ProgressPercentage = float64(int(progress*100+0.5)) / 100

	var completed []string
	if done := s.completions[adv.ID]; done != nil {
		completed = done.ToSlice()
	}
	sort.Strings(completed)
	view.CompletedQuests = completed
	view.CompletedQuestsCount = len(completed)
	return view
}

func (s *Server) adventurerViewsLocked(userID string) []api.Adventurer {
	var views []api.Adventurer
	for _, adv := range s.adventurers {
		if adv.UserID == userID {
			views = append(views, s.adventurerViewLocked(adv))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}

func (s *Server) listAdventurers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := s.adventurerViewsLocked(sessionUserID(c))
	if views == nil {
		views = []api.Adventurer{}
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) createAdventurer(c *gin.Context) {
	var req api.CreateAdventurerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid adventurer payload", "")
		return
	}
	if req.Name == "" {
		fail(c, http.StatusBadRequest, "Adventurer must have a name", "")
		return
	}
	if req.AdventurerType == "" {
		req.AdventurerType = api.DefaultAdventurerType
	}
	valid := false
	for _, t := range api.AdventurerTypes {
		if t == req.AdventurerType {
			valid = true
			break
		}
	}
	if !valid {
		fail(c, http.StatusBadRequest, fmt.Sprintf("unknown adventurer type %q", req.AdventurerType), "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, adv := range s.adventurers {
		if adv.Name == req.Name {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Adventurer with name '%s' already exists", req.Name), "")
			return
		}
	}

	adv := &api.Adventurer{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Level:          1,
		AdventurerType: req.AdventurerType,
		UserID:         sessionUserID(c),
	}
	s.adventurers[adv.ID] = adv
	s.completions[adv.ID] = set.New[string]()
	c.JSON(http.StatusCreated, s.adventurerViewLocked(adv))
}

func (s *Server) getAdventurer(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	adv, ok := s.adventurers[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("Adventurer %s not found", c.Param("id")), "")
		return
	}
	c.JSON(http.StatusOK, s.adventurerViewLocked(adv))
}

// completeQuest applies the progression rules: a first-time completion adds
// the reward, and crossing level*100 experience levels the adventurer up
// and resets experience to zero. Repeat completions are no-ops.
func (s *Server) completeQuest(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adv, ok := s.adventurers[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("Adventurer %s not found", c.Param("id")), "")
		return
	}
	quest, ok := s.quests[c.Param("questId")]
	if !ok || quest.AdventurerID != adv.ID {
		fail(c, http.StatusNotFound, fmt.Sprintf("Quest with ID: %s not found", c.Param("questId")), "")
		return
	}

	completions := s.completions[adv.ID]
	wasNew := !completions.Contains(quest.ID)
	leveledUp := false
	if wasNew {
		completions.Add(quest.ID)
		quest.Completed = true
		quest.UpdatedAt = now()

		required := adv.Level * 100
		adv.Experience += quest.ExperienceReward
		if adv.Experience >= required {
			adv.Level++
			adv.Experience = 0
			leveledUp = true
		}
	}

	c.JSON(http.StatusOK, api.QuestCompletionResponse{
		Message:          fmt.Sprintf("Quest %s completed", quest.Title),
		Adventurer:       s.adventurerViewLocked(adv),
		WasNewCompletion: wasNew,
		LeveledUp:        leveledUp,
	})
}

// --- quests ---

func (s *Server) listQuests(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quests := []api.Quest{}
	for _, q := range s.quests {
		if q.AdventurerID == c.Param("adventurerId") {
			quests = append(quests, *q)
		}
	}
	sort.Slice(quests, func(i, j int) bool { return quests[i].CreatedAt < quests[j].CreatedAt })
	c.JSON(http.StatusOK, quests)
}

func (s *Server) createQuest(c *gin.Context) {
	var req api.CreateQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid quest payload", "")
		return
	}
	if req.Title == "" {
		fail(c, http.StatusBadRequest, "Title for quest was not provided", "")
		return
	}
	if req.ExperienceReward <= 0 {
		req.ExperienceReward = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.adventurers[req.AdventurerID]; !ok {
		fail(c, http.StatusBadRequest, fmt.Sprintf("Adventurer %s not found", req.AdventurerID), "")
		return
	}

	quest := &api.Quest{
		ID:               uuid.NewString(),
		Title:            req.Title,
		ExperienceReward: req.ExperienceReward,
		AdventurerID:     req.AdventurerID,
		CreatedAt:        now(),
		UpdatedAt:        now(),
	}
	s.quests[quest.ID] = quest
	c.JSON(http.StatusCreated, *quest)
}

func (s *Server) getQuest(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quest, ok := s.quests[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("Quest with ID: %s not found", c.Param("id")), "")
		return
	}
	c.JSON(http.StatusOK, *quest)
}

func (s *Server) updateQuest(c *gin.Context) {
	var update api.QuestUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, "invalid quest payload", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	quest, ok := s.quests[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("Quest with ID: %s not found", c.Param("id")), "")
		return
	}
	if update.Title != nil {
		quest.Title = *update.Title
	}
	if update.ExperienceReward != nil {
		quest.ExperienceReward = *update.ExperienceReward
	}
	if update.Completed != nil {
		quest.Completed = *update.Completed
	}
	quest.UpdatedAt = now()
	c.JSON(http.StatusOK, *quest)
}

func (s *Server) deleteQuest(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quest, ok := s.quests[c.Param("id")]
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("Quest with ID: %s not found", c.Param("id")), "")
		return
	}
	delete(s.quests, quest.ID)
	if comp, ok := s.completions[quest.AdventurerID]; ok {
		comp.Remove(quest.ID)
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Quest deleted successfully"})
}
