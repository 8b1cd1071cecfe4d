package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/database"
	"roomchat/backend/internal/models"
	"roomchat/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupAPI wires an in-memory database and a router with the same route
// table as cmd/server.
func setupAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	oldConfig := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
	t.Cleanup(func() { config.AppConfig = oldConfig })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ChatRoom{}, &models.RoomParticipant{}, &models.Message{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	oldDB := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = oldDB })

	router := gin.New()
	apiV1 := router.Group("/api/v1")
	{
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/register", RegisterUser)
			authRoutes.POST("/login", LoginUser)
		}

		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("/me", GetMe)
		}

		roomRoutes := apiV1.Group("/rooms")
		roomRoutes.Use(auth.AuthMiddleware())
		{
			roomRoutes.POST("", CreateRoom)
			roomRoutes.GET("/mine", MyRooms)
			roomRoutes.POST("/private", PrivateRoom)
			roomRoutes.GET("/:id", GetRoomByID)
			roomRoutes.GET("/:id/messages", GetRoomMessages)
			roomRoutes.POST("/:id/join", JoinRoom)
			roomRoutes.POST("/:id/leave", LeaveRoom)
			roomRoutes.PATCH("/:id/role", UpdateRole)
			roomRoutes.DELETE("/:id/participants/:userID", RemoveParticipant)
		}
	}
	return router
}

// createTestUser inserts a user directly and returns its ID and a token.
func createTestUser(t *testing.T, username string) (uint, string) {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "irrelevant",
	}
	if err := database.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return user.ID, token
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %s: %v", w.Body.String(), err)
	}
	return body
}

func TestCreateRoom(t *testing.T) {
	router := setupAPI(t)
	_, token := createTestUser(t, "alice")

	w := doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{"name": "general"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["room_id"] == nil {
		t.Error("expected room_id in response")
	}

	t.Run("duplicate name", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{"name": "general"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for duplicate name, got %d", w.Code)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for missing name, got %d", w.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/rooms", "", gin.H{"name": "other"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without token, got %d", w.Code)
		}
	})
}

func TestJoinRoom_FirstJoinerBecomesAdmin(t *testing.T) {
	router := setupAPI(t)
	aliceID, aliceToken := createTestUser(t, "alice")
	bobID, bobToken := createTestUser(t, "bob")

	w := doRequest(t, router, http.MethodPost, "/api/v1/rooms", aliceToken, gin.H{"name": "general"})
	roomID := uint(decodeBody(t, w)["room_id"].(float64))
	path := "/api/v1/rooms/" + itoa(roomID) + "/join"

	if w := doRequest(t, router, http.MethodPost, path, aliceToken, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 joining, got %d: %s", w.Code, w.Body.String())
	}
	if w := doRequest(t, router, http.MethodPost, path, bobToken, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 joining, got %d: %s", w.Code, w.Body.String())
	}

	var alice, bob models.RoomParticipant
	database.DB.Where("user_id = ?", aliceID).First(&alice)
	database.DB.Where("user_id = ?", bobID).First(&bob)
	if alice.Role != models.RoleAdmin {
		t.Errorf("expected first joiner to be admin, got %s", alice.Role)
	}
	if bob.Role != models.RoleMember {
		t.Errorf("expected second joiner to be member, got %s", bob.Role)
	}

	t.Run("already joined", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, path, aliceToken, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for double join, got %d", w.Code)
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/rooms/999/join", aliceToken, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown room, got %d", w.Code)
		}
	})
}

func TestLeaveRoom(t *testing.T) {
	router := setupAPI(t)
	_, token := createTestUser(t, "alice")

	doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{"name": "general"})
	doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/join", token, nil)

	if w := doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/leave", token, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 leaving, got %d", w.Code)
	}

	t.Run("not a participant", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/leave", token, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404 leaving twice, got %d", w.Code)
		}
	})
}

func TestMyRooms(t *testing.T) {
	router := setupAPI(t)
	_, token := createTestUser(t, "alice")

	doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{"name": "general"})
	doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{"name": "random"})
	doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/join", token, nil)

	w := doRequest(t, router, http.MethodGet, "/api/v1/rooms/mine", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	rooms := decodeBody(t, w)["rooms"].([]interface{})
	if len(rooms) != 1 {
		t.Errorf("expected 1 room, got %d", len(rooms))
	}
}

func TestPrivateRoom_GetOrCreate(t *testing.T) {
	router := setupAPI(t)
	aliceID, aliceToken := createTestUser(t, "alice")
	bobID, bobToken := createTestUser(t, "bob")

	w := doRequest(t, router, http.MethodPost, "/api/v1/rooms/private", aliceToken, gin.H{"user_id": bobID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	first := decodeBody(t, w)
	if first["type"] != "private" {
		t.Errorf("expected private type, got %v", first["type"])
	}

	// Requesting from either side of the pair returns the same room.
	w = doRequest(t, router, http.MethodPost, "/api/v1/rooms/private", bobToken, gin.H{"user_id": aliceID})
	second := decodeBody(t, w)
	if first["room_id"] != second["room_id"] {
		t.Errorf("expected one room per pair, got %v and %v", first["room_id"], second["room_id"])
	}

	var count int64
	database.DB.Model(&models.ChatRoom{}).Where("type = ?", models.RoomTypePrivate).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 private room, got %d", count)
	}

	t.Run("unknown user", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/rooms/private", aliceToken, gin.H{"user_id": 999})
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown user, got %d", w.Code)
		}
	})
}

func TestUpdateRole(t *testing.T) {
	router := setupAPI(t)
	_, aliceToken := createTestUser(t, "alice")
	bobID, bobToken := createTestUser(t, "bob")

	doRequest(t, router, http.MethodPost, "/api/v1/rooms", aliceToken, gin.H{"name": "general"})
	doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/join", aliceToken, nil) // admin
	doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/join", bobToken, nil)  // member

	t.Run("member cannot update roles", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPatch, "/api/v1/rooms/1/role", bobToken, gin.H{"user_id": bobID, "role": "admin"})
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})

	t.Run("admin promotes member", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPatch, "/api/v1/rooms/1/role", aliceToken, gin.H{"user_id": bobID, "role": "admin"})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var bob models.RoomParticipant
		database.DB.Where("user_id = ? AND room_id = ?", bobID, 1).First(&bob)
		if bob.Role != models.RoleAdmin {
			t.Errorf("expected bob to be admin, got %s", bob.Role)
		}
	})

	t.Run("target not in room", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPatch, "/api/v1/rooms/1/role", aliceToken, gin.H{"user_id": 999, "role": "member"})
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPatch, "/api/v1/rooms/1/role", aliceToken, gin.H{"user_id": bobID, "role": "owner"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestRemoveParticipant(t *testing.T) {
	router := setupAPI(t)
	_, aliceToken := createTestUser(t, "alice")
	bobID, bobToken := createTestUser(t, "bob")

	doRequest(t, router, http.MethodPost, "/api/v1/rooms", aliceToken, gin.H{"name": "general"})
	doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/join", aliceToken, nil)
	doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/join", bobToken, nil)

	t.Run("member cannot remove", func(t *testing.T) {
		w := doRequest(t, router, http.MethodDelete, "/api/v1/rooms/1/participants/1", bobToken, nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", w.Code)
		}
	})

	t.Run("admin removes member", func(t *testing.T) {
		path := "/api/v1/rooms/1/participants/" + itoa(bobID)
		w := doRequest(t, router, http.MethodDelete, path, aliceToken, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var count int64
		database.DB.Model(&models.RoomParticipant{}).Where("user_id = ? AND room_id = ?", bobID, 1).Count(&count)
		if count != 0 {
			t.Error("expected bob's participant row to be gone")
		}
	})

	t.Run("target not in room", func(t *testing.T) {
		w := doRequest(t, router, http.MethodDelete, "/api/v1/rooms/1/participants/999", aliceToken, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestGetRoomByID(t *testing.T) {
	router := setupAPI(t)
	aliceID, token := createTestUser(t, "alice")

	doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{"name": "general", "description": "town square"})
	doRequest(t, router, http.MethodPost, "/api/v1/rooms/1/join", token, nil)

	w := doRequest(t, router, http.MethodGet, "/api/v1/rooms/1", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["name"] != "general" || body["description"] != "town square" {
		t.Errorf("unexpected details %v", body)
	}
	participants := body["participants"].([]interface{})
	if len(participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(participants))
	}
	p := participants[0].(map[string]interface{})
	if uint(p["user_id"].(float64)) != aliceID || p["role"] != "admin" {
		t.Errorf("unexpected participant %v", p)
	}

	t.Run("not found", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/rooms/999", token, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestGetRoomMessages(t *testing.T) {
	router := setupAPI(t)
	userID, token := createTestUser(t, "alice")

	doRequest(t, router, http.MethodPost, "/api/v1/rooms", token, gin.H{"name": "general"})
	for i := 0; i < 5; i++ {
		msg := models.Message{RoomID: 1, UserID: userID, Content: "msg"}
		if err := database.DB.Create(&msg).Error; err != nil {
			t.Fatalf("failed to seed message: %v", err)
		}
	}

	w := doRequest(t, router, http.MethodGet, "/api/v1/rooms/1/messages?page=1&limit=2", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data := body["data"].([]interface{})
	if len(data) != 2 {
		t.Errorf("expected 2 messages on page, got %d", len(data))
	}
	meta := body["meta"].(map[string]interface{})
	if meta["total_items"].(float64) != 5 {
		t.Errorf("expected 5 total, got %v", meta["total_items"])
	}

	t.Run("unknown room", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/rooms/999/messages", token, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
