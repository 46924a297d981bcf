package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"broadcast-room/internal/models"
	"broadcast-room/internal/repositories"
	"broadcast-room/internal/room"
)

const maxSnapshotLimit = 500

// RoomLookup finds running rooms without starting new ones.
type RoomLookup interface {
	Lookup(id string) (*room.Room, bool)
	IDs() []string
}

// RoomHandler serves read-only views over rooms.
type RoomHandler struct {
	rooms   RoomLookup
	history repositories.MessageRepository
}

// NewRoomHandler builds a RoomHandler. history may be nil when no archive
// is configured.
func NewRoomHandler(rooms RoomLookup, history repositories.MessageRepository) *RoomHandler {
	return &RoomHandler{rooms: rooms, history: history}
}

// ListRooms returns the ids of running rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.rooms.IDs()})
}

// GetMessages returns the recent history of a room, oldest first. A room
// that is not running is served from the archive when one exists.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	if rm, ok := h.rooms.Lookup(roomID); ok {
		msgs, err := rm.Snapshot(c.Request.Context(), limit)
		if err != nil {
			h.roomUnavailable(c, roomID, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"room_id": roomID, "messages": msgs})
		return
	}

	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if limit <= 0 {
		limit = maxSnapshotLimit
	}
	msgs, err := h.history.RecentMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		log.Printf("load archived messages failed room=%s: %v", roomID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "messages": msgs})
}

// GetOnline returns the per-connection roster, the distinct users and the count.
func (h *RoomHandler) GetOnline(c *gin.Context) {
	roomID := c.Param("room_id")
	rm, ok := h.rooms.Lookup(roomID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"room_id":     roomID,
			"connections": []models.PresenceEntry{},
			"users":       []models.OnlineUser{},
			"count":       0,
		})
		return
	}

	roster, err := rm.Roster(c.Request.Context())
	if err != nil {
		h.roomUnavailable(c, roomID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id":     roomID,
		"connections": roster.Connections,
		"users":       roster.Users,
		"count":       roster.Count,
	})
}

// Health reports liveness.
func (h *RoomHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(h.rooms.IDs())})
}

func (h *RoomHandler) roomUnavailable(c *gin.Context, roomID string, err error) {
	if errors.Is(err, room.ErrRoomClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room closed"})
		return
	}
	log.Printf("room query failed room=%s: %v", roomID, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "room unavailable"})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("invalid limit")
	}
	if limit > maxSnapshotLimit {
		limit = maxSnapshotLimit
	}
	return limit, nil
}
