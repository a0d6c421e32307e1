package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	"github.com/stefando/uploadpresigner/internal/app"
	"github.com/stefando/uploadpresigner/internal/config"
	"github.com/stefando/uploadpresigner/internal/logging"
)

// newLambdaHandler adapts API Gateway proxy events to the router. The router
// is built once per Lambda container and reused across invocations.
func newLambdaHandler(router http.Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return serveEvent(ctx, router, req)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}

	router, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"bucket":  cfg.Bucket,
		"backend": cfg.StorageBackend,
	}).Info("Services initialized")

	lambda.Start(newLambdaHandler(router))
}
