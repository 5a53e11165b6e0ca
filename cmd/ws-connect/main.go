// Package main handles the websocket $connect and $disconnect routes. Live connections
// are what the websocket notification sink delivers to.
package main

import (
	"context"
	"log"
	"net/http"

	"socialcore/domain/core/entities"
	"socialcore/infrastructure/config"
	"socialcore/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var (
	container *di.Container
	cfg       *config.Config
)

func init() {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
}

// connectingUser reads the authorizer principal of a $connect request.
func connectingUser(req events.APIGatewayWebsocketProxyRequest) string {
	authz, ok := req.RequestContext.Authorizer.(map[string]interface{})
	if !ok {
		return ""
	}
	userID, _ := authz["principalId"].(string)
	return userID
}

func handler(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := req.RequestContext.ConnectionID
	logger := container.Logger.With(
		zap.String("connectionID", connectionID),
		zap.String("route", req.RequestContext.RouteKey),
	)

	switch req.RequestContext.RouteKey {
	case "$connect":
		userID := connectingUser(req)
		if userID == "" {
			logger.Warn("Connection rejected without principal")
			return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized}, nil
		}
		conn := &entities.Connection{
			ConnectionID: connectionID,
			UserID:       userID,
			ConnectedAt:  container.Clock.Now(),
		}
		if err := container.Repositories.Connections.PutConnection(ctx, conn, cfg.ConnectionTTL); err != nil {
			logger.Error("Failed to store connection", zap.Error(err))
			return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
		}
		logger.Info("Connection established", zap.String("userID", userID))

	case "$disconnect":
		conn, err := container.Repositories.Connections.DeleteConnection(ctx, connectionID)
		if err != nil {
			logger.Error("Failed to delete connection", zap.Error(err))
			return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
		}
		if conn != nil {
			logger.Info("Connection closed", zap.String("userID", conn.UserID))
		}

	default:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}
