package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"socialcore/application/ports"
	"socialcore/domain/events"
	"socialcore/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/smithy-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PostToConnectionAPI is the slice of the API Gateway management client the sink uses.
type PostToConnectionAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Message is the frame pushed to websocket clients.
type Message struct {
	Type      string `json:"type"`
	View      string `json:"view"`
	SubjectID string `json:"subjectId"`
	Timestamp int64  `json:"timestamp"`
}

// WebSocketSink pushes notifications to every live connection of the subscriber.
type WebSocketSink struct {
	client      PostToConnectionAPI
	connections ports.ConnectionRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewWebSocketSink(client PostToConnectionAPI, connections ports.ConnectionRepository, logger *zap.Logger, metrics *observability.Metrics) *WebSocketSink {
	return &WebSocketSink{
		client:      client,
		connections: connections,
		logger:      logger,
		metrics:     metrics,
	}
}

func (s *WebSocketSink) Notify(ctx context.Context, n events.Notification) error {
	conns, err := s.connections.ConnectionsForUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to get connections for %s: %w", n.UserID, err)
	}
	if len(conns) == 0 {
		return nil
	}

	frame, err := json.Marshal(Message{
		Type:      events.EventType,
		View:      string(n.View),
		SubjectID: n.SubjectID,
		Timestamp: n.OccurredAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var errs error
	for _, conn := range conns {
		errs = multierr.Append(errs, s.send(ctx, conn.ConnectionID, frame))
	}
	if errs != nil {
		s.metrics.SinkFailed("websocket")
	}
	return errs
}

func (s *WebSocketSink) send(ctx context.Context, connectionID string, frame []byte) error {
	_, err := s.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         frame,
	})
	if err == nil {
		return nil
	}
	if !isGone(err) {
		return fmt.Errorf("failed to send to connection %s: %w", connectionID, err)
	}

	// stale connection
	if _, err := s.connections.DeleteConnection(ctx, connectionID); err != nil {
		s.logger.Warn("Failed to remove stale connection",
			zap.String("connectionID", connectionID),
			zap.Error(err),
		)
		return nil
	}
	s.logger.Debug("Removed stale connection", zap.String("connectionID", connectionID))
	return nil
}

func isGone(err error) bool {
	var gone *apigwTypes.GoneException
	if errors.As(err, &gone) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "GoneException"
}
