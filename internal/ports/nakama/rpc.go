package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/app"
	"seotda/internal/domain"
)

// gRPC status codes used in runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeAborted            = 10
	codeInternal           = 13
)

// rpcHandlers binds the RPC surface to the application service.
type rpcHandlers struct {
	svc *app.Service
}

// RegisterRPCs registers the Seotda RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer, svc *app.Service) error {
	h := &rpcHandlers{svc: svc}
	for id, fn := range map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcCreateGame:   h.createGame,
		RpcJoinGame:     h.joinGame,
		RpcStartGame:    h.startGame,
		RpcSubmitAction: h.submitAction,
		RpcGameState:    h.gameState,
		RpcHistory:      h.history,
	} {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

type createGameRequest struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
	Mode string `json:"mode"`
}

type createGameResponse struct {
	GameID string `json:"game_id"`
}

func (h *rpcHandlers) createGame(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req createGameRequest
	if err := parsePayload(payload, &req); err != nil {
		return "", err
	}

	game, events, err := h.svc.CreateGame(ctx, userID, req.Name, req.Tier, domain.Mode(req.Mode))
	if err != nil {
		return "", rpcError(logger, "createGame", userID, err)
	}
	h.svc.Watch(game.ID)
	h.svc.Dispatch(ctx, events)
	return marshalResponse(createGameResponse{GameID: game.ID})
}

type joinGameRequest struct {
	GameID string `json:"game_id"`
	Name   string `json:"name"`
}

type joinGameResponse struct {
	GameID string `json:"game_id"`
	Seat   int    `json:"seat"`
}

func (h *rpcHandlers) joinGame(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req joinGameRequest
	if err := parsePayload(payload, &req); err != nil {
		return "", err
	}

	player, events, err := h.svc.JoinGame(ctx, req.GameID, userID, req.Name)
	if err != nil {
		return "", rpcError(logger, "joinGame", userID, err)
	}
	h.svc.Dispatch(ctx, events)
	return marshalResponse(joinGameResponse{GameID: req.GameID, Seat: player.Seat})
}

type gameIDRequest struct {
	GameID string `json:"game_id"`
}

func (h *rpcHandlers) startGame(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req gameIDRequest
	if err := parsePayload(payload, &req); err != nil {
		return "", err
	}

	events, err := h.svc.StartGame(ctx, req.GameID, userID)
	if err != nil {
		return "", rpcError(logger, "startGame", userID, err)
	}
	h.svc.Dispatch(ctx, events)
	return h.snapshotResponse(ctx, logger, req.GameID, userID)
}

type submitActionRequest struct {
	GameID string `json:"game_id"`
	Action string `json:"action"`
	Amount int64  `json:"amount"`
}

func (h *rpcHandlers) submitAction(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req submitActionRequest
	if err := parsePayload(payload, &req); err != nil {
		return "", err
	}

	events, err := h.svc.SubmitAction(ctx, req.GameID, userID, domain.ActionType(req.Action), req.Amount)
	if err != nil {
		return "", rpcError(logger, "submitAction", userID, err)
	}
	h.svc.Dispatch(ctx, events)
	return h.snapshotResponse(ctx, logger, req.GameID, userID)
}

func (h *rpcHandlers) gameState(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req gameIDRequest
	if err := parsePayload(payload, &req); err != nil {
		return "", err
	}
	return h.snapshotResponse(ctx, logger, req.GameID, userID)
}

type historyRequest struct {
	GameID string `json:"game_id"`
	Limit  int    `json:"limit"`
}

type historyResponse struct {
	Actions []*domain.ActionRecord `json:"actions"`
}

func (h *rpcHandlers) history(ctx context.Context, logger runtime.Logger, _ *sql.DB, _ runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req historyRequest
	if err := parsePayload(payload, &req); err != nil {
		return "", err
	}

	trail, err := h.svc.ActionHistory(ctx, req.GameID, req.Limit)
	if err != nil {
		return "", rpcError(logger, "history", userID, err)
	}
	return marshalResponse(historyResponse{Actions: trail})
}

func (h *rpcHandlers) snapshotResponse(ctx context.Context, logger runtime.Logger, gameID, userID string) (string, error) {
	snap, err := h.svc.Snapshot(ctx, gameID, userID)
	if err != nil {
		return "", rpcError(logger, "snapshot", userID, err)
	}
	return marshalResponse(snap)
}

func callerID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", runtime.NewError("rpc requires an authenticated user", codePermissionDenied)
	}
	return userID, nil
}

func parsePayload(payload string, v any) error {
	if payload == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return runtime.NewError(fmt.Sprintf("malformed payload: %v", err), codeInvalidArgument)
	}
	return nil
}

func marshalResponse(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to marshal response", codeInternal)
	}
	return string(raw), nil
}

// rpcError classifies an application error onto a gRPC status code.
func rpcError(logger runtime.Logger, op, userID string, err error) error {
	code := codeInternal
	switch {
	case errors.Is(err, domain.ErrValidation):
		code = codeInvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		code = codeNotFound
	case errors.Is(err, app.ErrNotHost):
		code = codePermissionDenied
	case errors.Is(err, domain.ErrNotYourTurn),
		errors.Is(err, domain.ErrWrongStatus),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, app.ErrAlreadyJoined),
		errors.Is(err, app.ErrTableFull):
		code = codeFailedPrecondition
	case errors.Is(err, domain.ErrVersionConflict):
		code = codeAborted
	}
	if code == codeInternal {
		logger.Error("%s [User:%s]: %v", op, userID, err)
	} else {
		logger.Debug("%s [User:%s]: %v", op, userID, err)
	}
	return runtime.NewError(err.Error(), code)
}
