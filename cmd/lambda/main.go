package main

import (
	"context"
	"log"
	"time"

	"socialcore/infrastructure/config"
	"socialcore/infrastructure/di"
	"socialcore/interfaces/http/rest"
	"socialcore/interfaces/http/rest/middleware"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

func init() {
	coldStartTime = time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	handler := rest.NewRouter(
		container.CommandBus,
		container.QueryBus,
		container.RateLimiter,
		container.Metrics,
		cfg,
		container.Logger,
	).Setup()

	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed", zap.Duration("duration", time.Since(coldStartTime)))
}

// authorizedUser returns the subject established by the API Gateway authorizer.
func authorizedUser(req events.APIGatewayV2HTTPRequest) string {
	authz := req.RequestContext.Authorizer
	if authz == nil {
		return ""
	}
	if authz.JWT != nil {
		if sub := authz.JWT.Claims["sub"]; sub != "" {
			return sub
		}
	}
	if userID, ok := authz.Lambda["userId"].(string); ok {
		return userID
	}
	return ""
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	// Identity only ever comes from the authorizer; a client supplied header is discarded.
	delete(req.Headers, "x-user-id")
	delete(req.Headers, middleware.UserIDHeader)
	if userID := authorizedUser(req); userID != "" {
		req.Headers[middleware.UserIDHeader] = userID
	}

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	container.Reporter.Flush(ctx)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
			zap.Int("status_code", resp.StatusCode),
		)
	}

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
