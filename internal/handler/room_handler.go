package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"roomchat/backend/internal/database"
	"roomchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// region --- DTOs ---

// CreateRoomInput defines the structure for creating a group room.
type CreateRoomInput struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type" binding:"omitempty,oneof=private group"`
	Description string `json:"description"`
}

// PrivateRoomInput identifies the other half of a private conversation.
type PrivateRoomInput struct {
	UserID uint `json:"user_id" binding:"required"`
}

// UpdateRoleInput defines the structure for changing a participant's role.
type UpdateRoleInput struct {
	UserID uint                   `json:"user_id" binding:"required"`
	Role   models.ParticipantRole `json:"role" binding:"required,oneof=member admin"`
}

// RoomSummary is the per-room entry in room listings.
type RoomSummary struct {
	RoomID   uint            `json:"room_id"`
	RoomName *string         `json:"room_name"`
	RoomType models.RoomType `json:"room_type"`
}

// ParticipantResponse is one participant in a room's detail view.
type ParticipantResponse struct {
	UserID uint                   `json:"user_id"`
	Role   models.ParticipantRole `json:"role"`
}

// RoomDetailsResponse is the full detail view of a single room.
type RoomDetailsResponse struct {
	ID            uint                  `json:"id"`
	Name          *string               `json:"name"`
	Type          models.RoomType       `json:"type"`
	Description   string                `json:"description"`
	AvatarURL     string                `json:"avatar_url"`
	LastMessageAt *time.Time            `json:"last_message_at"`
	Participants  []ParticipantResponse `json:"participants"`
}

// MessageResponse is one row of room history.
type MessageResponse struct {
	ID        uint      `json:"id"`
	RoomID    uint      `json:"room_id"`
	UserID    uint      `json:"user_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// endregion

// CreateRoom godoc
// @Summary      Create a group room
// @Description  Creates a named group room. Names are unique.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreateRoomInput true "Room Info"
// @Success      201  {object}  map[string]interface{} "{"message": "...", "room_id": 1}"
// @Failure      400  {object}  ErrorResponse "Room name already exists"
// @Router       /rooms [post]
func CreateRoom(c *gin.Context) {
	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomType := models.RoomType(input.Type)
	if roomType == "" {
		roomType = models.RoomTypeGroup
	}

	var existing models.ChatRoom
	if err := database.DB.Where("name = ?", input.Name).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room name already exists"})
		return
	}

	room := models.ChatRoom{
		Name:        &input.Name,
		Type:        roomType,
		Description: input.Description,
	}
	if err := database.DB.Create(&room).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Room created successfully", "room_id": room.ID})
}

// MyRooms godoc
// @Summary      List the caller's rooms
// @Description  Lists every room the authenticated user participates in.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string][]RoomSummary
// @Router       /rooms/mine [get]
func MyRooms(c *gin.Context) {
	userID, _ := c.Get("userID")

	var participants []models.RoomParticipant
	if err := database.DB.Preload("Room").Where("user_id = ?", userID).Find(&participants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rooms"})
		return
	}

	rooms := make([]RoomSummary, 0, len(participants))
	for _, p := range participants {
		rooms = append(rooms, RoomSummary{
			RoomID:   p.RoomID,
			RoomName: p.Room.Name,
			RoomType: p.Room.Type,
		})
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoomByID godoc
// @Summary      Get room details
// @Description  Gets full details for a single room, including its participants.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} RoomDetailsResponse
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id} [get]
func GetRoomByID(c *gin.Context) {
	roomID, _ := strconv.Atoi(c.Param("id"))

	var room models.ChatRoom
	if err := database.DB.Preload("Participants").First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	participants := make([]ParticipantResponse, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, ParticipantResponse{UserID: p.UserID, Role: p.Role})
	}

	c.JSON(http.StatusOK, RoomDetailsResponse{
		ID:            room.ID,
		Name:          room.Name,
		Type:          room.Type,
		Description:   room.Description,
		AvatarURL:     room.AvatarURL,
		LastMessageAt: room.LastMessageAt,
		Participants:  participants,
	})
}

// GetRoomMessages godoc
// @Summary      Get room message history
// @Description  Gets a paginated list of a room's messages, newest first.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  int true  "Room ID"
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(50)
// @Success      200 {object} PaginatedResponse[MessageResponse]
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id}/messages [get]
func GetRoomMessages(c *gin.Context) {
	roomID, _ := strconv.Atoi(c.Param("id"))

	var room models.ChatRoom
	if err := database.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	query := database.DB.Where("room_id = ?", roomID).Order("created_at DESC, id DESC")
	result, err := Paginate[models.Message](query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	messages := make([]MessageResponse, 0, len(result.Data))
	for _, m := range result.Data {
		messages = append(messages, MessageResponse{
			ID:        m.ID,
			RoomID:    m.RoomID,
			UserID:    m.UserID,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(messages, result.Meta.TotalItems, page, limit))
}

// JoinRoom godoc
// @Summary      Join a room
// @Description  Adds the caller as a participant. The first participant of a room becomes its admin.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} map[string]string "{"message": "Joined room successfully"}"
// @Failure      400 {object} ErrorResponse "Already part of the room"
// @Failure      404 {object} ErrorResponse "Room not found"
// @Router       /rooms/{id}/join [post]
func JoinRoom(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var room models.ChatRoom
	if err := database.DB.First(&room, roomID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	var existing models.RoomParticipant
	if err := database.DB.Where("user_id = ? AND room_id = ?", userID, roomID).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Already part of the room"})
		return
	}

	var participantCount int64
	database.DB.Model(&models.RoomParticipant{}).Where("room_id = ?", roomID).Count(&participantCount)

	role := models.RoleMember
	if participantCount == 0 {
		role = models.RoleAdmin
	}

	participant := models.RoomParticipant{
		UserID:   userID.(uint),
		RoomID:   uint(roomID),
		Role:     role,
		JoinedAt: time.Now(),
	}
	if err := database.DB.Create(&participant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Joined room successfully"})
}

// LeaveRoom godoc
// @Summary      Leave a room
// @Description  Removes the caller's participant record for the room.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200 {object} map[string]string "{"message": "Left room successfully"}"
// @Failure      404 {object} ErrorResponse "You are not part of this room"
// @Router       /rooms/{id}/leave [post]
func LeaveRoom(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var participant models.RoomParticipant
	if err := database.DB.Where("user_id = ? AND room_id = ?", userID, roomID).First(&participant).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "You are not part of this room"})
		return
	}

	if err := database.DB.Delete(&participant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left room successfully"})
}

// PrivateRoom godoc
// @Summary      Get or create a private room
// @Description  Returns the unique 1:1 room for the caller and the given user, creating it on first use.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body PrivateRoomInput true "Other user"
// @Success      200 {object} map[string]interface{} "{"room_id": 1, "type": "private"}"
// @Failure      404 {object} ErrorResponse "User not found"
// @Router       /rooms/private [post]
func PrivateRoom(c *gin.Context) {
	currentUserID, _ := c.Get("userID")

	var input PrivateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var otherUser models.User
	if err := database.DB.First(&otherUser, input.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	room, err := getOrCreatePrivateRoom(database.DB, currentUserID.(uint), input.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create private room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": room.ID, "type": room.Type})
}

// getOrCreatePrivateRoom returns the unique private room for the unordered
// pair {a, b}, creating it if absent. The pair is stored with the lower ID
// first so the unique index covers both orderings; losing a concurrent
// creation race surfaces as a duplicate-key error, after which the winner's
// row is read back.
func getOrCreatePrivateRoom(db *gorm.DB, a, b uint) (*models.ChatRoom, error) {
	if b < a {
		a, b = b, a
	}

	var room models.ChatRoom
	err := db.Where("type = ? AND user1_id = ? AND user2_id = ?", models.RoomTypePrivate, a, b).First(&room).Error
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room = models.ChatRoom{
		Type:    models.RoomTypePrivate,
		User1ID: &a,
		User2ID: &b,
	}
	if err := db.Create(&room).Error; err != nil {
		// Lost the race: return the row the other writer created.
		var existing models.ChatRoom
		if findErr := db.Where("type = ? AND user1_id = ? AND user2_id = ?", models.RoomTypePrivate, a, b).First(&existing).Error; findErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &room, nil
}

// UpdateRole godoc
// @Summary      Update a participant's role (Admin only)
// @Description  Changes another participant's role. Only an admin of the room may do this.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int true "Room ID"
// @Param        input body UpdateRoleInput true "Target user and new role"
// @Success      200 {object} map[string]string "{"message": "User role updated"}"
// @Failure      403 {object} ErrorResponse "Only admins can update roles"
// @Failure      404 {object} ErrorResponse "User not in this room"
// @Router       /rooms/{id}/role [patch]
func UpdateRole(c *gin.Context) {
	currentUserID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var input UpdateRoleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var actor models.RoomParticipant
	if err := database.DB.Where("user_id = ? AND room_id = ? AND role = ?", currentUserID, roomID, models.RoleAdmin).First(&actor).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only admins can update roles"})
		return
	}

	var participant models.RoomParticipant
	if err := database.DB.Where("user_id = ? AND room_id = ?", input.UserID, roomID).First(&participant).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not in this room"})
		return
	}

	if err := database.DB.Model(&participant).Update("role", input.Role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User role updated to " + string(input.Role)})
}

// RemoveParticipant godoc
// @Summary      Remove a participant (Admin only)
// @Description  Removes a participant from the room. Only an admin of the room may do this.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int true "Room ID"
// @Param        userID  path int true "User ID of participant to remove"
// @Success      200 {object} map[string]string "{"message": "User removed from the room"}"
// @Failure      403 {object} ErrorResponse "Only admins can remove participants"
// @Failure      404 {object} ErrorResponse "User not in this room"
// @Router       /rooms/{id}/participants/{userID} [delete]
func RemoveParticipant(c *gin.Context) {
	currentUserID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))
	targetUserID, _ := strconv.Atoi(c.Param("userID"))

	var actor models.RoomParticipant
	if err := database.DB.Where("user_id = ? AND room_id = ? AND role = ?", currentUserID, roomID, models.RoleAdmin).First(&actor).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only admins can remove participants"})
		return
	}

	var participant models.RoomParticipant
	if err := database.DB.Where("user_id = ? AND room_id = ?", targetUserID, roomID).First(&participant).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not in this room"})
		return
	}

	if err := database.DB.Delete(&participant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove participant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User removed from the room"})
}
