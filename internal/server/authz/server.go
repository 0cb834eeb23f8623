// Package authz exposes the authorization decision to a reverse proxy as an
// Envoy ext_authz gRPC service. Each Check call is translated into one
// AuthorizeHTTP evaluation and the decision back into the proxy's Ok/Denied
// response shapes.
package authz

import (
	"context"
	"net"
	"net/url"
	"strings"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/sessions"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// UsernameHeader is sent to the upstream with the authenticated username, so
// backends that do not parse the Bearer token still know who is calling.
const UsernameHeader = "x-janus-username"

type Server struct {
	authv3.UnimplementedAuthorizationServer
	address  string
	sessions *sessions.Manager
	logger   logging.Logger
}

func NewServer(address string, sessionManager *sessions.Manager, logger logging.Logger) *Server {
	return &Server{
		address:  address,
		sessions: sessionManager,
		logger:   logger.With("module", "authz"),
	}
}

// Run serves the ext_authz endpoint until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer()
	authv3.RegisterAuthorizationServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping ext_authz server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting ext_authz server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

func (s *Server) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	attrs := req.GetAttributes()
	httpReq := attrs.GetRequest().GetHttp()

	headers := httpReq.GetHeaders()
	if headers == nil {
		headers = make(map[string]string)
	}

	// Envoy folds repeated headers into one comma-joined value.
	var authorizationHeaders []string
	if h := headers["authorization"]; h != "" {
		authorizationHeaders = strings.Split(h, ",")
	}

	requestURL := &url.URL{
		Scheme: headers["x-forwarded-proto"],
		Host:   httpReq.GetHost(),
		Path:   httpReq.GetPath(),
	}

	decision, err := s.sessions.AuthorizeHTTP(ctx, &sessions.AuthorizeRequest{
		Method:        httpReq.GetMethod(),
		URL:           requestURL.String(),
		RequestID:     headers["x-request-id"],
		Authorization: authorizationHeaders,
		CookieHeader:  headers["cookie"],
		Accept:        headers["accept"],
		IPAddress:     attrs.GetSource().GetAddress().GetSocketAddress().GetAddress(),
		UserAgent:     headers["user-agent"],
	})
	if err != nil {
		s.logger.Error(ctx, "authorization check failed",
			"request_id", headers["x-request-id"], "error", err)
		return unavailableResponse(), nil
	}

	if decision.Allow != nil {
		return allowResponse(decision.Allow), nil
	}
	return denyResponse(decision.Deny), nil
}

func allowResponse(allow *sessions.Allow) *authv3.CheckResponse {
	ok := &authv3.OkHttpResponse{
		// The inbound session credentials stop here; the upstream sees only
		// what we inject.
		HeadersToRemove: []string{"cookie"},
	}

	for k, v := range allow.HeadersToAdd {
		ok.Headers = append(ok.Headers, overwriteHeader(k, v))
	}
	for k, v := range allow.HeadersToAppend {
		ok.Headers = append(ok.Headers, appendHeader(k, v))
	}
	ok.Headers = append(ok.Headers, overwriteHeader(UsernameHeader, allow.Username))

	return &authv3.CheckResponse{
		Status:       &rpcstatus.Status{Code: int32(codes.OK)},
		HttpResponse: &authv3.CheckResponse_OkResponse{OkResponse: ok},
	}
}

func denyResponse(deny *sessions.Deny) *authv3.CheckResponse {
	denied := &authv3.DeniedHttpResponse{}

	if deny.RedirectURL != "" {
		denied.Status = &typev3.HttpStatus{Code: typev3.StatusCode_TemporaryRedirect}
		denied.Body = "Not authorized. Redirecting to login."
		denied.Headers = []*corev3.HeaderValueOption{
			overwriteHeader("content-type", "text/plain"),
			overwriteHeader("location", deny.RedirectURL),
		}
	} else {
		denied.Status = &typev3.HttpStatus{Code: typev3.StatusCode(deny.Response.StatusCode)}
		denied.Body = deny.Response.Body
		denied.Headers = []*corev3.HeaderValueOption{
			overwriteHeader("content-type", deny.Response.ContentType),
		}
	}

	return &authv3.CheckResponse{
		Status:       &rpcstatus.Status{Code: int32(codes.PermissionDenied)},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{DeniedResponse: denied},
	}
}

func unavailableResponse() *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &rpcstatus.Status{Code: int32(codes.Unavailable)},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status:  &typev3.HttpStatus{Code: typev3.StatusCode_InternalServerError},
				Body:    "Failed to evaluate authorization decision.",
				Headers: []*corev3.HeaderValueOption{overwriteHeader("content-type", "text/plain")},
			},
		},
	}
}

func overwriteHeader(key, value string) *corev3.HeaderValueOption {
	return &corev3.HeaderValueOption{
		AppendAction: corev3.HeaderValueOption_OVERWRITE_IF_EXISTS_OR_ADD,
		Header:       &corev3.HeaderValue{Key: key, Value: value},
	}
}

func appendHeader(key, value string) *corev3.HeaderValueOption {
	return &corev3.HeaderValueOption{
		AppendAction: corev3.HeaderValueOption_APPEND_IF_EXISTS_OR_ADD,
		Header:       &corev3.HeaderValue{Key: key, Value: value},
	}
}
