package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/feed"
	"github.com/lalith-99/familyhub/internal/identity"
	"github.com/lalith-99/familyhub/internal/membership"
	"github.com/lalith-99/familyhub/internal/middleware"
	"github.com/lalith-99/familyhub/internal/models"
	"go.uber.org/zap"
)

// Live topics.
const (
	TopicUser      = "user"
	TopicFamily    = "family"
	TopicTasks     = "tasks"
	TopicInventory = "inventory"
	TopicShopping  = "shopping"
)

const (
	writeTimeout = 10 * time.Second

	// CloseSignedOut is sent when the session behind a connection ends.
	CloseSignedOut = 4001
	// CloseFamilyChanged is sent on a family-scoped topic once the user
	// leaves, is removed from, or switches the family it was opened for.
	CloseFamilyChanged = 4003
)

// snapshot is one message on a live connection.
type snapshot struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// watchFunc starts a live query and reports each result to deliver.
type watchFunc func(ctx context.Context, deliver func(any, error)) (docstore.CancelFunc, error)

// LiveHandler streams snapshots of one topic over a WebSocket until the
// client goes away, signs out, or stops belonging to the family the topic
// is scoped to.
type LiveHandler struct {
	store    docstore.Store
	sub      feed.Subscriber
	families *membership.Service
	provider *identity.Provider
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewLiveHandler(store docstore.Store, sub feed.Subscriber, families *membership.Service, provider *identity.Provider, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		store:    store,
		sub:      sub,
		families: families,
		provider: provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Clients authenticate with a bearer token, not cookies, so
			// cross-origin handshakes carry no ambient credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve handles GET /v1/live?topic=...
func (h *LiveHandler) Serve(c *gin.Context) {
	uid := middleware.GetUserID(c)
	tokenID := middleware.GetTokenID(c)
	topic := c.Query("topic")

	start, familyID, err := h.watcher(c.Request.Context(), topic, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already answered the client.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	sess := &liveSession{conn: conn}

	signedOut := make(chan struct{})
	var signOutOnce sync.Once
	stopAuth := h.provider.OnAuthStateChanged(func(s identity.AuthState) {
		if !s.SignedIn && s.TokenID == tokenID {
			signOutOnce.Do(func() { close(signedOut) })
		}
	})
	defer stopAuth()

	membershipChanged := make(chan struct{})
	var changedOnce sync.Once
	revoke := func() { changedOnce.Do(func() { close(membershipChanged) }) }

	if familyID != "" {
		stopMembership, err := docstore.WatchDocument(ctx, h.store, h.sub, models.CollectionUsers, uid, func(doc *docstore.Document, err error) {
			if err != nil {
				h.logger.Warn("membership watch failed", zap.String("user_id", uid), zap.Error(err))
				return
			}
			if !linkedTo(doc, familyID) {
				revoke()
			}
		})
		if err != nil {
			h.logger.Error("start membership watch", zap.String("user_id", uid), zap.Error(err))
			sess.close(websocket.CloseInternalServerErr, "could not start live updates")
			return
		}
		defer stopMembership()
	}

	stopWatch, err := start(ctx, func(data any, err error) {
		// Re-read the link before every snapshot so nothing written after
		// a removal reaches the removed member.
		if familyID != "" && err == nil {
			member, merr := h.stillMember(ctx, uid, familyID)
			if merr != nil {
				err = merr
			} else if !member {
				revoke()
				return
			}
		}
		msg := snapshot{Topic: topic, Data: data}
		if err != nil {
			h.logger.Warn("live query failed", zap.String("topic", topic), zap.Error(err))
			msg.Data = nil
			msg.Error = apperr.MessageOf(err)
		}
		if werr := sess.send(msg); werr != nil {
			cancel()
		}
	})
	if err != nil {
		h.logger.Error("start live query", zap.String("topic", topic), zap.Error(err))
		sess.close(websocket.CloseInternalServerErr, "could not start live updates")
		return
	}
	defer stopWatch()

	// The client never sends anything we act on; reading is only how a
	// closed connection gets noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-gone:
	case <-ctx.Done():
	case <-signedOut:
		sess.close(CloseSignedOut, "signed out")
	case <-membershipChanged:
		h.logger.Info("closing live connection after family change",
			zap.String("user_id", uid),
			zap.String("family_id", familyID),
			zap.String("topic", topic),
		)
		sess.close(CloseFamilyChanged, "family membership changed")
	}
}

// stillMember reports whether users/{uid} still points at familyID.
func (h *LiveHandler) stillMember(ctx context.Context, uid, familyID string) (bool, error) {
	doc, err := h.store.Get(ctx, models.CollectionUsers, uid)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return linkedTo(doc, familyID), nil
}

func linkedTo(doc *docstore.Document, familyID string) bool {
	if doc == nil {
		return false
	}
	u, err := models.DecodeUser(doc)
	if err != nil || u.FamilyID == nil {
		return false
	}
	return *u.FamilyID == familyID
}

// watcher resolves a topic into the live query behind it, plus the family
// it is scoped to (empty for the user topic). Everything that can fail
// before the upgrade fails here, so the client gets a normal HTTP error
// instead of a closed socket.
func (h *LiveHandler) watcher(ctx context.Context, topic, uid string) (watchFunc, string, error) {
	switch topic {
	case TopicUser:
		return func(ctx context.Context, deliver func(any, error)) (docstore.CancelFunc, error) {
			return docstore.WatchDocument(ctx, h.store, h.sub, models.CollectionUsers, uid, func(doc *docstore.Document, err error) {
				deliverDocument(doc, err, models.DecodeUser, deliver)
			})
		}, "", nil

	case TopicFamily, TopicTasks, TopicInventory, TopicShopping:
	default:
		return nil, "", apperr.New(apperr.CodeInvalidInput, "topic must be one of: user family tasks inventory shopping")
	}

	family, err := h.families.GetFamily(ctx, uid)
	if err != nil {
		return nil, "", err
	}

	switch topic {
	case TopicFamily:
		return func(ctx context.Context, deliver func(any, error)) (docstore.CancelFunc, error) {
			return docstore.WatchDocument(ctx, h.store, h.sub, models.CollectionFamilies, family.ID, func(doc *docstore.Document, err error) {
				deliverDocument(doc, err, models.DecodeFamily, deliver)
			})
		}, family.ID, nil
	case TopicTasks:
		return watchFamilyItems(h, models.CollectionTasks, family.ID, models.DecodeTask), family.ID, nil
	case TopicInventory:
		return watchFamilyItems(h, models.CollectionInventory, family.ID, models.DecodeInventoryItem), family.ID, nil
	default:
		return watchFamilyItems(h, models.CollectionShopping, family.ID, models.DecodeShoppingItem), family.ID, nil
	}
}

func watchFamilyItems[T any](h *LiveHandler, collection, familyID string, decode func(*docstore.Document) (*T, error)) watchFunc {
	q := docstore.Collection(collection).Where(models.FieldFamilyID, familyID)
	return func(ctx context.Context, deliver func(any, error)) (docstore.CancelFunc, error) {
		return docstore.Watch(ctx, h.store, h.sub, q, func(docs []docstore.Document, err error) {
			if err != nil {
				deliver(nil, err)
				return
			}
			items := make([]T, 0, len(docs))
			for i := range docs {
				item, err := decode(&docs[i])
				if err != nil {
					deliver(nil, err)
					return
				}
				items = append(items, *item)
			}
			deliver(items, nil)
		})
	}
}

func deliverDocument[T any](doc *docstore.Document, err error, decode func(*docstore.Document) (*T, error), deliver func(any, error)) {
	if err != nil {
		deliver(nil, err)
		return
	}
	if doc == nil {
		deliver(nil, nil)
		return
	}
	v, err := decode(doc)
	if err != nil {
		deliver(nil, err)
		return
	}
	deliver(v, nil)
}

// liveSession serializes writes to one connection.
type liveSession struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *liveSession) send(msg snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *liveSession) close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeTimeout))
}
