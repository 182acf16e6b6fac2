package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"signal_bot/internal/models"
	position "signal_bot/internal/modules/position/service"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type SignalWriter interface {
	SetSignal(ctx context.Context, sig models.ControlSignal) error
}

type Server struct {
	state     *State
	control   SignalWriter
	positions *position.Store
	tail      *Tailer
	metrics   http.Handler

	log      *zap.Logger
	critical *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewServer(state *State, control SignalWriter, positions *position.Store, tail *Tailer, metrics http.Handler, log *zap.Logger) *Server {
	l := log.Named("admin")
	return &Server{
		state:     state,
		control:   control,
		positions: positions,
		tail:      tail,
		metrics:   metrics,
		log:       l,
		critical:  logger.Critical(l),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		// liveness: the process is up
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /start", s.signal(models.ControlStart))
	mux.HandleFunc("POST /stop", s.signal(models.ControlStop))
	mux.HandleFunc("GET /stream_logs", s.streamLogs)
	mux.HandleFunc("GET /ws/logs", s.wsLogs)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

type healthPosition struct {
	InstID     string  `json:"instId"`
	State      string  `json:"state"`
	Variant    string  `json:"variant"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entryPrice"`
	Quantity   float64 `json:"quantity"`
	Stop       float64 `json:"stop"`
	TakeProfit float64 `json:"takeProfit"`
}

type healthReply struct {
	Ready        bool             `json:"ready"`
	UptimeSec    int64            `json:"uptimeSec"`
	LastTickUnix int64            `json:"lastTickUnix"`
	Positions    []healthPosition `json:"positions"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthReply{
		Ready:     s.state.Ready(),
		UptimeSec: int64(s.state.Uptime().Seconds()),
		Positions: []healthPosition{},
	}
	if t := s.state.LastTick(); !t.IsZero() {
		resp.LastTickUnix = t.Unix()
	}
	if s.positions != nil {
		for _, p := range s.positions.Active() {
			resp.Positions = append(resp.Positions, healthPosition{
				InstID: p.InstID, State: string(p.State), Variant: string(p.Variant), Side: string(p.Side),
				EntryPrice: p.EntryPrice, Quantity: p.Quantity, Stop: p.StopLevel, TakeProfit: p.TakeProfitLevel,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (s *Server) signal(sig models.ControlSignal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at := s.now().Format(time.DateTime)
		if err := s.control.SetSignal(r.Context(), sig); err != nil {
			s.critical.Error(fmt.Sprintf("writing %s signal failed\ntime: %s\nerror: %v", sig, at, err))
			writeJSON(w, http.StatusInternalServerError, statusReply{
				Status:  "error",
				Message: fmt.Sprintf("failed to send %s signal: %v", sig, err),
			})
			return
		}
		s.critical.Info(fmt.Sprintf("%s signal written\ntime: %s", sig, at))
		writeJSON(w, http.StatusOK, statusReply{
			Status:  "success",
			Message: fmt.Sprintf("trading strategy %s signal sent", sig),
		})
	}
}

// streamLogs serves new log lines as server-sent events.
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := s.tail.Follow(r.Context(), func(line string) error {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && r.Context().Err() == nil {
		_, _ = fmt.Fprintf(w, "data: error reading log file: %v\n\n", err)
		flusher.Flush()
	}
}

func (s *Server) wsLogs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// the read side only exists to notice the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = s.tail.Follow(ctx, func(line string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.TextMessage, []byte(line))
	})
	if err != nil && ctx.Err() == nil {
		s.log.Debug("log stream closed", zap.Error(err))
	}
}
