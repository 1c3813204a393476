package services

import (
	"context"
	"errors"
	"time"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/apperrors"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/bus"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/models"
	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/store"

	"go.opentelemetry.io/otel/attribute"
)

// MembershipService turns join requests into players.
//
// A request moves PENDING -> APPROVED or PENDING -> REJECTED on the host's
// decision, or is deleted when the requester cancels it while PENDING. Any
// existing request row blocks a new one for the same game, so a rejection
// is final while a cancellation frees the slot.
type MembershipService struct {
	store store.Store
	bus   bus.Publisher
	now   func() time.Time
}

func NewMembershipService(st store.Store, pub bus.Publisher) *MembershipService {
	return &MembershipService{
		store: st,
		bus:   pub,
		now:   time.Now,
	}
}

func (s *MembershipService) RequestJoin(ctx context.Context, gameID, userID string) (req *models.PlayerRequest, err error) {
	ctx, span := startSpan(ctx, "MembershipService.RequestJoin",
		attribute.String("mcq.game_id", gameID), attribute.String("mcq.user_id", userID))
	defer func() { endSpan(span, err) }()

	game, err := getGame(ctx, s.store, gameID)
	if err != nil {
		return nil, err
	}
	if game.HostID == userID {
		return nil, apperrors.Forbidden("the host cannot request to join their own game")
	}
	if game.Status == models.GameCompleted {
		return nil, apperrors.InvalidState("game has already completed")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user not found")
	}

	if _, err := s.store.FindPlayerRequest(ctx, gameID, userID); err == nil {
		return nil, apperrors.Conflict("a request for this game already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Internal(err)
	}

	request := &models.PlayerRequest{GameID: gameID, UserID: userID, Status: models.RequestPending}
	if err := s.store.CreatePlayerRequest(ctx, request); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.Conflict("a request for this game already exists")
		}
		return nil, apperrors.Internal(err)
	}
	request.User = *user

	notify(ctx, s.bus, bus.GameTopic(gameID), bus.EventPlayerRequest, map[string]interface{}{
		"requestId": request.ID,
		"userId":    userID,
		"username":  user.Username,
		"gameId":    gameID,
		"status":    request.Status,
	})
	return request, nil
}

// hostedRequest loads a request and checks that userID hosts its game.
func (s *MembershipService) hostedRequest(ctx context.Context, requestID, userID, action string) (*models.PlayerRequest, *models.Game, error) {
	request, err := s.store.GetPlayerRequest(ctx, requestID)
	if err != nil {
		return nil, nil, storeError(err, "request not found")
	}
	game, err := getHostedGame(ctx, s.store, request.GameID, userID, action)
	if err != nil {
		return nil, nil, err
	}
	return request, game, nil
}

// Approve marks the request APPROVED and creates the Player. Approving an
// already approved request returns the existing Player and emits nothing.
func (s *MembershipService) Approve(ctx context.Context, requestID, actingUserID string) (player *models.Player, err error) {
	ctx, span := startSpan(ctx, "MembershipService.Approve",
		attribute.String("mcq.request_id", requestID), attribute.String("mcq.user_id", actingUserID))
	defer func() { endSpan(span, err) }()

	request, game, err := s.hostedRequest(ctx, requestID, actingUserID, "approve requests")
	if err != nil {
		return nil, err
	}
	if game.Status == models.GameCompleted {
		return nil, apperrors.InvalidState("game has already completed")
	}

	player, created, err := s.store.ApprovePlayerRequest(ctx, request.ID, s.now().UTC())
	switch {
	case errors.Is(err, store.ErrStatusMismatch):
		return nil, apperrors.InvalidState("only pending requests can be approved")
	case err != nil:
		return nil, storeError(err, "request not found")
	}
	if !created {
		return player, nil
	}

	username := ""
	if user, err := s.store.GetUser(ctx, request.UserID); err == nil {
		username = user.Username
		player.User = *user
	}

	topic := bus.GameTopic(game.ID)
	notify(ctx, s.bus, topic, bus.EventPlayerApproved, map[string]interface{}{
		"userId":    request.UserID,
		"gameId":    game.ID,
		"requestId": request.ID,
	})
	notify(ctx, s.bus, topic, bus.EventPlayerJoined, map[string]interface{}{
		"userId":   request.UserID,
		"username": username,
		"gameId":   game.ID,
	})
	return player, nil
}

func (s *MembershipService) Reject(ctx context.Context, requestID, actingUserID string) (request *models.PlayerRequest, err error) {
	ctx, span := startSpan(ctx, "MembershipService.Reject",
		attribute.String("mcq.request_id", requestID), attribute.String("mcq.user_id", actingUserID))
	defer func() { endSpan(span, err) }()

	request, game, err := s.hostedRequest(ctx, requestID, actingUserID, "reject requests")
	if err != nil {
		return nil, err
	}

	request, err = s.store.SetPlayerRequestStatus(ctx, request.ID, models.RequestPending, models.RequestRejected)
	switch {
	case errors.Is(err, store.ErrStatusMismatch):
		return nil, apperrors.InvalidState("only pending requests can be rejected")
	case err != nil:
		return nil, storeError(err, "request not found")
	}

	notify(ctx, s.bus, bus.GameTopic(game.ID), bus.EventPlayerRejected, map[string]interface{}{
		"requestId": request.ID,
		"userId":    request.UserID,
		"gameId":    game.ID,
		"message":   "Your request to join the game was rejected.",
	})
	return request, nil
}

// Cancel withdraws the requester's own PENDING request by deleting it.
func (s *MembershipService) Cancel(ctx context.Context, requestID, actingUserID string) (err error) {
	ctx, span := startSpan(ctx, "MembershipService.Cancel",
		attribute.String("mcq.request_id", requestID), attribute.String("mcq.user_id", actingUserID))
	defer func() { endSpan(span, err) }()

	request, err := s.store.GetPlayerRequest(ctx, requestID)
	if err != nil {
		return storeError(err, "request not found")
	}
	if request.UserID != actingUserID {
		return apperrors.Forbidden("only the requester can cancel this request")
	}
	if request.Status != models.RequestPending {
		return apperrors.InvalidState("only pending requests can be cancelled")
	}

	err = s.store.DeletePlayerRequest(ctx, request.ID, models.RequestPending)
	switch {
	case errors.Is(err, store.ErrStatusMismatch):
		return apperrors.InvalidState("only pending requests can be cancelled")
	case err != nil:
		return storeError(err, "request not found")
	}

	notify(ctx, s.bus, bus.RequestTopic(request.ID), bus.EventRequestCancelled, map[string]interface{}{
		"requestId": request.ID,
		"userId":    request.UserID,
		"status":    models.RequestCancelled,
	})
	return nil
}

// GetRequest returns a request to its requester or to the game's host.
func (s *MembershipService) GetRequest(ctx context.Context, requestID, userID string) (*models.PlayerRequest, error) {
	request, err := s.store.GetPlayerRequest(ctx, requestID)
	if err != nil {
		return nil, storeError(err, "request not found")
	}
	if request.UserID == userID {
		return request, nil
	}
	if _, err := getHostedGame(ctx, s.store, request.GameID, userID, "view this request"); err != nil {
		return nil, err
	}
	return request, nil
}

// ListForGame returns every request for the game with the requester loaded.
func (s *MembershipService) ListForGame(ctx context.Context, gameID, actingUserID string) ([]models.PlayerRequest, error) {
	if _, err := getHostedGame(ctx, s.store, gameID, actingUserID, "view join requests"); err != nil {
		return nil, err
	}
	requests, err := s.store.ListPlayerRequestsByGame(ctx, gameID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return requests, nil
}

// ListMine returns the user's own requests with their games loaded.
func (s *MembershipService) ListMine(ctx context.Context, userID string) ([]models.PlayerRequest, error) {
	requests, err := s.store.ListPlayerRequestsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return requests, nil
}
