package services

import (
	"context"

	"socialcore/application/dispatch"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	"socialcore/domain/events"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// CardService manages in-app cards. A card id is derived from what triggered it, so
// repeated triggers bump one card.
type CardService struct {
	cards ports.CardRepository
	publisher
}

func NewCardService(cards ports.CardRepository, d *dispatch.Dispatcher, clock ports.Clock, logger *zap.Logger) *CardService {
	return &CardService{cards: cards, publisher: newPublisher(d, clock, logger)}
}

// UpsertCard creates the card or bumps it by card.Count. A card id already held by
// another user is a conflict.
func (s *CardService) UpsertCard(ctx context.Context, card *entities.Card) (*entities.Card, error) {
	if err := required("cardID", card.CardID, "userID", card.UserID); err != nil {
		return nil, err
	}
	now := s.now()
	c := *card
	if c.Count == 0 {
		c.Count = 1
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	old, err := s.cards.GetCard(ctx, c.CardID)
	if err != nil {
		return nil, err
	}
	stored, err := s.cards.UpsertCard(ctx, &c)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.publisher, events.EntityCard, stored.CardID, old, stored)
	return stored, nil
}

// DeleteCard removes a card if it exists.
func (s *CardService) DeleteCard(ctx context.Context, cardID string) error {
	old, err := s.cards.DeleteCard(ctx, cardID)
	if err != nil || old == nil {
		return err
	}
	publish(ctx, s.publisher, events.EntityCard, cardID, old, nil)
	return nil
}

// DismissCard lets a user delete one of their own cards.
func (s *CardService) DismissCard(ctx context.Context, userID, cardID string) error {
	card, err := s.cards.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return pkgerrors.NewNotFoundError("card")
	}
	if card.UserID != userID {
		return pkgerrors.NewForbiddenError("card belongs to another user")
	}
	return s.DeleteCard(ctx, cardID)
}

func (s *CardService) PageCards(ctx context.Context, userID string, limit int, cursor string) ([]*entities.Card, string, error) {
	return s.cards.PageCards(ctx, userID, limit, cursor)
}
