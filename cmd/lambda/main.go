package main

import (
	"context"
	"log"
	"strings"
	"time"

	"product-catalog/internal/config"
	"product-catalog/internal/di"
	"product-catalog/internal/interfaces/http/rest/middleware"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
)

// setup builds the container once per execution environment, during cold start.
func setup() {
	coldStart := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The cleanup is never run: the execution environment is frozen, not stopped.
	container, _, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	chiLambda = chiadapter.NewV2(container.Router)
	container.Logger.Info("Lambda cold start completed", zap.Duration("duration", time.Since(coldStart)))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	if container.Config.Auth.TrustGateway {
		applyAuthorizerContext(&req)
	}
	return chiLambda.ProxyWithContextV2(ctx, req)
}

// applyAuthorizerContext copies the JWT authorizer claims into the headers the
// authentication middleware trusts.
func applyAuthorizerContext(req *events.APIGatewayV2HTTPRequest) {
	for name := range req.Headers {
		for _, h := range []string{middleware.HeaderGatewayAuthorized, middleware.HeaderUserID, middleware.HeaderUserGroups} {
			if strings.EqualFold(name, h) {
				delete(req.Headers, name)
			}
		}
	}

	authorizer := req.RequestContext.Authorizer
	if authorizer == nil || authorizer.JWT == nil {
		return
	}
	claims := authorizer.JWT.Claims
	userID := claims["sub"]
	if userID == "" {
		return
	}
	req.Headers[middleware.HeaderGatewayAuthorized] = "true"
	req.Headers[middleware.HeaderUserID] = userID
	// HTTP API authorizers flatten list claims to "[a b]".
	groups := strings.Fields(strings.Trim(claims["cognito:groups"], "[]"))
	req.Headers[middleware.HeaderUserGroups] = strings.Join(groups, ",")
}

func main() {
	setup()
	lambda.Start(Handler)
}
