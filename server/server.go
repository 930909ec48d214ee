package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/guessbox/gameserver/broadcast"
	"github.com/guessbox/gameserver/catalog"
	"github.com/guessbox/gameserver/config"
	"github.com/guessbox/gameserver/game"
	"github.com/guessbox/gameserver/logger"
	"github.com/guessbox/gameserver/monitor"
	"github.com/guessbox/gameserver/network"
	"github.com/guessbox/gameserver/room"
	"github.com/guessbox/gameserver/session"
	"github.com/guessbox/gameserver/timer"
)

const (
	commandQueueSize  = 256
	roomGaugeInterval = 5 * time.Second
)

// GameServer is the session gateway. It owns the transport boundary and
// funnels every inbound event onto one dispatch queue, so the registry and
// rounds are only ever touched by a single goroutine, in arrival order.
type GameServer struct {
	addr           string
	metricsAddr    string
	upgrader       websocket.Upgrader
	registry       *room.Registry
	sessionManager *session.Manager
	broadcaster    room.Broadcaster
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	commands       chan func()
	shutdownChan   chan struct{}
	httpServer     *http.Server
}

func NewGameServer(cfg *config.Config, cat *catalog.Catalog) *GameServer {
	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		registry:       room.NewRegistry(cat, catalog.NewResolver()),
		sessionManager: session.NewManager(),
		monitor:        monitor.NewMonitor("guessbox"),
		timers:         timer.NewTimerManager(),
		commands:       make(chan func(), commandQueueSize),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.registry, s.sessionManager)
	s.registry.SetBroadcaster(s.broadcaster)
	s.httpServer = &http.Server{Addr: s.addr}

	return s
}

func (s *GameServer) Start() error {
	go s.dispatchLoop()

	s.monitor.StartServer(s.metricsAddr)
	s.timers.AddTimer(0, roomGaugeInterval, func() {
		// read the registry on the dispatch queue, like everything else
		s.enqueue(func() {
			s.monitor.SetActiveRooms(s.registry.RoomCount())
		})
	})

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))
	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Guess in the Box server running!"))
	})
	router.Get("/ws", s.handleWebSocket)

	logger.Log.Infof("Game server listening on %s", s.addr)
	s.httpServer.Handler = router
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and the dispatch loop. Sessions still blocked
// in a read return on their next packet and run their cleanup.
func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	_ = s.httpServer.Close()
}

// dispatchLoop applies queued commands one at a time. For any room, the
// order two players' actions take effect is exactly their arrival order.
func (s *GameServer) dispatchLoop() {
	for {
		select {
		case cmd := <-s.commands:
			start := time.Now()
			cmd()
			s.monitor.ObserveMessageLatency(time.Since(start))
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *GameServer) enqueue(cmd func()) {
	select {
	case s.commands <- cmd:
	case <-s.shutdownChan:
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("Player connected from %s, session %s (%d online)",
		wsConn.RemoteAddr(), sess.GetID(), s.sessionManager.Count())

	defer func() {
		logger.Log.Infof("Player disconnected, session %s, room %q", sess.GetID(), sess.RoomCode())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.enqueue(func() {
			s.registry.Leave(sess.GetID())
		})
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.monitor.IncMessagesReceived()
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()

	case network.MsgTypeJoinRoom:
		var req network.JoinRoomRequest
		if !s.decode(sess, packet.Data, &req) {
			return
		}
		s.enqueue(func() {
			if err := s.registry.Join(req.RoomCode, sess.GetID(), req.PlayerName); err != nil {
				s.sendError(sess, err)
				return
			}
			sess.SetRoomCode(req.RoomCode)
			sess.SetDisplayName(req.PlayerName)
		})

	case network.MsgTypeAskQuestion:
		var req network.AskQuestionRequest
		if !s.decode(sess, packet.Data, &req) {
			return
		}
		s.enqueue(func() {
			if err := s.registry.AskQuestion(req.RoomCode, sess.GetID(), req.QuestionKey, req.QuestionText); err != nil {
				s.sendError(sess, err)
			}
		})

	case network.MsgTypeMakeGuess:
		var req network.MakeGuessRequest
		if !s.decode(sess, packet.Data, &req) {
			return
		}
		s.enqueue(func() {
			s.registry.Guess(req.RoomCode, sess.GetID(), req.Guess)
		})

	case network.MsgTypeForfeit:
		var req network.ForfeitRequest
		if !s.decode(sess, packet.Data, &req) {
			return
		}
		s.enqueue(func() {
			s.registry.Forfeit(req.RoomCode, sess.GetID())
		})

	case network.MsgTypeNewGame:
		var req network.NewGameRequest
		if !s.decode(sess, packet.Data, &req) {
			return
		}
		s.enqueue(func() {
			s.registry.NewGame(req.RoomCode)
		})

	default:
		logger.Log.Infof("Unknown message type %d from session %s", packet.MsgID, sess.GetID())
	}
}

func (s *GameServer) decode(sess *session.Session, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		s.sendErrorMessage(sess, "Invalid payload.")
		return false
	}
	return true
}

// sendError maps a recovered core error onto an error_message event for the
// originating session only. Nothing here ever reaches the other player.
func (s *GameServer) sendError(sess *session.Session, err error) {
	var msg string
	switch {
	case errors.Is(err, room.ErrRoomFull):
		msg = "Room is full."
	case errors.Is(err, room.ErrInvalidInput):
		msg = "Room code and name required."
	case errors.Is(err, game.ErrDuplicateQuestion):
		msg = "That question was already asked."
	case errors.Is(err, catalog.ErrUnknownQuestion):
		msg = "Unknown question."
	default:
		msg = err.Error()
	}
	s.sendErrorMessage(sess, msg)
}

func (s *GameServer) sendErrorMessage(sess *session.Session, msg string) {
	data, err := json.Marshal(network.ErrorMessageEvent{Message: msg})
	if err != nil {
		return
	}
	_ = sess.Send(network.MsgTypeErrorMessage, data)
}
