package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/echotools/eosplus/server"
	"github.com/echotools/eosplus/server/oss"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/heroiclabs/nakama-common/api"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"
)

const requestTimeout = 2 * time.Second

type playerResponse struct {
	Slot        int    `json:"slot"`
	PlusID      string `json:"plus_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	LoginState  string `json:"login_state"`
	LoginStatus string `json:"login_status"`
}

type presenceRequest struct {
	Status string `json:"status"`
}

type handler struct {
	logger *zap.Logger
	game   *game
}

func newRouter(logger *zap.Logger, g *game, registry *prom.Registry) http.Handler {
	h := &handler{
		logger: logger.With(zap.String("component", "debug_api")),
		game:   g,
	}

	router := mux.NewRouter()
	router.HandleFunc("/v1/players", h.listPlayers).Methods(http.MethodGet)
	router.HandleFunc("/v1/players/{slot:[0-9]+}/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/v1/players/{slot:[0-9]+}/autologin", h.autoLogin).Methods(http.MethodPost)
	router.HandleFunc("/v1/players/{slot:[0-9]+}/logout", h.logout).Methods(http.MethodPost)
	router.HandleFunc("/v1/players/{slot:[0-9]+}/friends", h.friends).Methods(http.MethodGet)
	router.HandleFunc("/v1/players/{slot:[0-9]+}/presence", h.setPresence).Methods(http.MethodPost)
	router.HandleFunc("/v1/registry", h.registryStats).Methods(http.MethodGet)
	router.HandleFunc("/v1/debug/recent", h.dumpRecent).Methods(http.MethodGet)
	router.HandleFunc("/v1/debug/blocked", h.dumpBlocked).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(os.Stdout, router))
}

func slotParam(r *http.Request) (int, error) {
	slot, err := strconv.Atoi(mux.Vars(r)["slot"])
	if err != nil {
		return 0, server.ErrInvalidSlot
	}
	return slot, nil
}

func httpStatus(err error) int {
	switch server.ErrorCode(err) {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (h *handler) listPlayers(w http.ResponseWriter, r *http.Request) {
	var players []playerResponse
	h.game.do(func(plus *server.EOSPlus) {
		maxPlayers := plus.Settings().Load().MaxLocalPlayers
		players = make([]playerResponse, 0, maxPlayers)
		for slot := 0; slot < maxPlayers; slot++ {
			p := playerResponse{
				Slot:        slot,
				LoginState:  plus.LoginState(slot).String(),
				LoginStatus: plus.GetLoginStatus(slot).String(),
			}
			if id, ok := plus.GetUniquePlayerID(slot); ok {
				p.PlusID = id.String()
				if account, ok := plus.GetUserAccount(id); ok {
					p.DisplayName = account.DisplayName()
				}
			}
			players = append(players, p)
		}
	})
	h.writeJSON(w, http.StatusOK, players)
}

// login starts a login with the credentials in the request body.
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var creds oss.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid credentials: " + err.Error()})
		return
	}
	h.awaitLogin(w, r, slot, func(plus *server.EOSPlus) bool {
		return plus.Login(slot, creds)
	})
}

// autoLogin starts a login with the credentials the platform already holds.
func (h *handler) autoLogin(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.awaitLogin(w, r, slot, func(plus *server.EOSPlus) bool {
		return plus.AutoLogin(slot)
	})
}

func (h *handler) awaitLogin(w http.ResponseWriter, r *http.Request, slot int, start func(*server.EOSPlus) bool) {
	var (
		event server.LoginCompleteEvent
		sub   *oss.Subscription
	)
	completed := h.game.await(r.Context(), requestTimeout, func(plus *server.EOSPlus, done func()) {
		sub = plus.Events().LoginComplete.Add(func(evt server.LoginCompleteEvent) {
			if evt.Slot != slot {
				return
			}
			event = evt
			sub.Unsubscribe()
			done()
		})
		if !start(plus) {
			sub.Unsubscribe()
			event = server.LoginCompleteEvent{Slot: slot, Error: server.ErrInvalidSlot.Error()}
			done()
		}
	})
	if !completed {
		h.game.do(func(*server.EOSPlus) { sub.Unsubscribe() })
		h.writeError(w, errors.New("login did not complete in time"))
		return
	}
	if !event.Success {
		h.writeJSON(w, http.StatusUnauthorized, event)
		return
	}
	h.writeJSON(w, http.StatusOK, playerResponse{
		Slot:        slot,
		PlusID:      event.UserID.String(),
		LoginState:  server.LoginComplete.String(),
		LoginStatus: oss.LoggedIn.String(),
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var ok bool
	h.game.do(func(plus *server.EOSPlus) {
		if _, registered := plus.GetUniquePlayerID(slot); !registered {
			return
		}
		ok = plus.Logout(slot)
	})
	if !ok {
		h.writeError(w, server.ErrUnknownSlot)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) friends(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	listName := r.URL.Query().Get("list")
	if listName == "" {
		listName = defaultListName
	}

	var (
		list []*server.FriendPlus
		ok   bool
	)
	h.game.do(func(plus *server.EOSPlus) {
		list, ok = plus.Friends().GetFriendsList(slot, listName)
	})
	if !ok {
		h.writeError(w, server.ErrUnknownSlot)
		return
	}

	out := &api.FriendList{Friends: make([]*api.Friend, 0, len(list))}
	for _, f := range list {
		out.Friends = append(out.Friends, f.ToAPI())
	}
	data, err := protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: false}.Marshal(out)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (h *handler) setPresence(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, server.ErrInvalidPlayerID)
		return
	}

	var result oss.PresenceResult
	known := true
	completed := h.game.await(r.Context(), requestTimeout, func(plus *server.EOSPlus, done func()) {
		id, ok := plus.GetUniquePlayerID(slot)
		if !ok {
			known = false
			done()
			return
		}
		status := oss.PresenceStatus{StatusStr: req.Status, State: oss.PresenceOnline}
		plus.Presence().SetPresence(id, status, func(res oss.PresenceResult) {
			result = res
			done()
		})
	})
	switch {
	case !known:
		h.writeError(w, server.ErrUnknownSlot)
	case !completed:
		h.writeError(w, errors.New("presence update did not complete in time"))
	default:
		h.writeJSON(w, http.StatusOK, map[string]bool{"success": result.Success})
	}
}

func (h *handler) registryStats(w http.ResponseWriter, r *http.Request) {
	var stats server.RegistryStats
	h.game.do(func(plus *server.EOSPlus) {
		stats = plus.Registry().Stats()
	})
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *handler) dumpRecent(w http.ResponseWriter, r *http.Request) {
	var dump string
	h.game.do(func(plus *server.EOSPlus) {
		dump = plus.Friends().DumpRecentPlayers()
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(dump))
}

func (h *handler) dumpBlocked(w http.ResponseWriter, r *http.Request) {
	var dump string
	h.game.do(func(plus *server.EOSPlus) {
		dump = plus.Friends().DumpBlockedPlayers()
	})
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(dump))
}
