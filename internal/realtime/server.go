package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/rs/zerolog"

	"github.com/Rayan1605/MainChatApplication/pkg/logger"
	"github.com/Rayan1605/MainChatApplication/pkg/utils"
)

// Area is a feature area with its own socket namespace.
type Area string

const (
	AreaChat  Area = "chat"
	AreaImage Area = "image"
	AreaUser  Area = "user"
)

// Areas lists every namespace the server serves.
var Areas = []Area{AreaChat, AreaImage, AreaUser}

func (a Area) namespace() string { return "/" + string(a) }

// room every socket of an area joins on connect
func (a Area) room() string { return string(a) }

var ErrBroadcastFailed = errors.New("broadcast failed")

// Emitter pushes an event to every client connected to one area.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// RedisOptions enables cross-instance fan-out through the socket.io Redis
// adapter.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Options struct {
	// AllowedOrigin is matched against the Origin header; empty allows all.
	AllowedOrigin string
	Redis         *RedisOptions
	Metrics       *Metrics
}

// Server is the socket.io server. Clients connect to /chat, /image or /user
// with ?token=<jwt>.
type Server struct {
	io      *socketio.Server
	log     zerolog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	online map[string]string // socket id -> user id
}

func NewServer(opts Options) (*Server, error) {
	checkOrigin := func(r *http.Request) bool {
		return opts.AllowedOrigin == "" || r.Header.Get("Origin") == opts.AllowedOrigin
	}
	io := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: checkOrigin},
			&polling.Transport{CheckOrigin: checkOrigin},
		},
	})

	s := &Server{
		io:      io,
		log:     logger.Named("socketServer"),
		metrics: opts.Metrics,
		online:  make(map[string]string),
	}

	if opts.Redis != nil {
		if _, err := io.Adapter(&socketio.RedisAdapterOptions{
			Addr:     opts.Redis.Addr,
			Password: opts.Redis.Password,
			DB:       opts.Redis.DB,
			Prefix:   opts.Redis.Prefix,
			Network:  "tcp",
		}); err != nil {
			return nil, fmt.Errorf("socket.io redis adapter: %w", err)
		}
	}

	io.OnConnect("/", func(c socketio.Conn) error { return nil })
	for _, area := range Areas {
		s.bind(area)
	}
	return s, nil
}

func (s *Server) bind(area Area) {
	nsp := area.namespace()

	s.io.OnConnect(nsp, s.authenticate(area))

	s.io.OnDisconnect(nsp, func(c socketio.Conn, reason string) {
		s.mu.Lock()
		delete(s.online, c.ID())
		s.mu.Unlock()
		s.log.Debug().Str("socket_id", c.ID()).Str("reason", reason).Msg("Socket closed")
	})

	s.io.OnError(nsp, func(c socketio.Conn, err error) {
		s.log.Warn().Err(err).Str("namespace", nsp).Msg("Socket error")
	})
}

// authenticate admits sockets that carry a valid JWT in the token (or
// auth_token) query parameter and joins them to the area room and their
// user room.
func (s *Server) authenticate(area Area) func(socketio.Conn) error {
	nsp := area.namespace()
	return func(c socketio.Conn) error {
		u := c.URL()
		query := u.Query()
		token := query.Get("token")
		if token == "" {
			token = query.Get("auth_token")
		}
		if token == "" {
			s.log.Warn().Str("socket_id", c.ID()).Str("namespace", nsp).Msg("Socket connection rejected: no token provided")
			return errors.New("authentication required")
		}
		claims, err := utils.ValidateToken(token)
		if err != nil {
			s.log.Warn().Str("socket_id", c.ID()).Str("namespace", nsp).Msg("Socket connection rejected: invalid token")
			return errors.New("invalid token")
		}

		c.SetContext(claims.UserID)
		c.Join(area.room())
		c.Join(claims.UserID)

		s.mu.Lock()
		s.online[c.ID()] = claims.UserID
		s.mu.Unlock()

		s.log.Debug().Str("socket_id", c.ID()).Str("user_id", claims.UserID).Str("namespace", nsp).Msg("Socket authenticated")
		return nil
	}
}

// Channel returns the emitter for area.
func (s *Server) Channel(area Area) Emitter {
	return &channel{server: s, area: area}
}

// Online reports how many authenticated sockets this instance holds.
func (s *Server) Online() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.online)
}

// Serve runs the socket.io event loop until Close.
func (s *Server) Serve() {
	if err := s.io.Serve(); err != nil {
		s.log.Error().Err(err).Msg("Socket server stopped")
	}
}

func (s *Server) Close() error {
	return s.io.Close()
}

// Handler mounts the socket.io endpoint on gin.
func (s *Server) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.io.ServeHTTP(c.Writer, c.Request)
	}
}

type channel struct {
	server *Server
	area   Area
}

func (ch *channel) Emit(event string, payload interface{}) error {
	if !ch.server.io.BroadcastToRoom(ch.area.namespace(), ch.area.room(), event, payload) {
		ch.server.metrics.inc(ch.area, event, "error")
		return fmt.Errorf("%w: %s on %s", ErrBroadcastFailed, event, ch.area.namespace())
	}
	ch.server.metrics.inc(ch.area, event, "ok")
	return nil
}
