package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/guard"
	"ptcoach/pt-manager/internal/lifecycle"
	"ptcoach/pt-manager/internal/logging"
	"ptcoach/pt-manager/internal/service"
)

// Stubs embed the service interfaces; calling a method a test did not
// stub panics on the nil embedded value.

type stubSession struct {
	session *guard.Session
	forced  bool
	err     error
}

type stubAuth struct {
	service.AuthService
	mu        sync.Mutex
	tokens    map[string]stubSession
	loggedOut []string
}

func newStubAuth() *stubAuth {
	return &stubAuth{tokens: make(map[string]stubSession)}
}

func (a *stubAuth) admin(token string, id primitive.ObjectID) {
	a.tokens[token] = stubSession{session: &guard.Session{
		ID: "sid-" + token, IdentityID: id.Hex(), Marker: domain.RoleAdmin, State: guard.StateAdmin,
	}}
}

func (a *stubAuth) client(token string, id primitive.ObjectID, firstLogin bool) {
	a.tokens[token] = stubSession{session: &guard.Session{
		ID: "sid-" + token, IdentityID: id.Hex(), Marker: domain.RoleClient, State: guard.StateClient, FirstLogin: firstLogin,
	}}
}

func (a *stubAuth) ParseToken(token string) (*service.Claims, error) {
	s, ok := a.tokens[token]
	if !ok {
		return nil, service.ErrInvalidToken
	}
	claims := &service.Claims{Role: domain.RoleAdmin}
	if s.session != nil {
		claims.UserID = s.session.IdentityID
		claims.Role = s.session.Marker
		claims.ID = s.session.ID
	}
	return claims, nil
}

func (a *stubAuth) ResolveSession(_ context.Context, claims *service.Claims) (*guard.Session, bool, error) {
	for _, s := range a.tokens {
		if s.session != nil && s.session.ID == claims.ID {
			if s.err != nil {
				return &guard.Session{State: guard.StateLoading}, false, s.err
			}
			return s.session, s.forced, nil
		}
	}
	return nil, false, errors.New("unknown session")
}

func (a *stubAuth) Logout(claims *service.Claims) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOut = append(a.loggedOut, claims.ID)
}

func (a *stubAuth) AdminLogin(_ context.Context, email, password string) (*service.LoginResult, error) {
	if email != "coach@test.it" || password != "secret1" {
		return nil, service.ErrAuthenticationFailed
	}
	return &service.LoginResult{Token: "admin-token", Role: domain.RoleAdmin}, nil
}

func (a *stubAuth) ClientLogin(_ context.Context, email, _ string) (*service.LoginResult, error) {
	if email == "coach@test.it" {
		return nil, service.ErrNotClientAccount
	}
	return &service.LoginResult{Token: "client-token", Role: domain.RoleClient, FirstLogin: true}, nil
}

type stubClients struct {
	service.ClientService
	onboarded []service.OnboardInput
	err       error
}

func (s *stubClients) Onboard(_ context.Context, in service.OnboardInput) (*service.OnboardResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.onboarded = append(s.onboarded, in)
	client := domain.Client{ID: primitive.NewObjectID(), Email: in.Email}
	client.SetName(in.Name)
	return &service.OnboardResult{Client: service.ClientView{Client: client}, TempPassword: "abc123def4"}, nil
}

func (s *stubClients) Get(_ context.Context, id primitive.ObjectID) (*service.ClientView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.ClientView{Client: domain.Client{ID: id, Name: "Anna"}}, nil
}

type stubChecks struct {
	service.CheckService
	submittedFor primitive.ObjectID
	input        service.CheckInput
	err          error
}

func (s *stubChecks) Submit(_ context.Context, clientID primitive.ObjectID, in service.CheckInput) (*service.CheckView, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.submittedFor = clientID
	s.input = in
	return &service.CheckView{Check: domain.Check{ID: primitive.NewObjectID(), ClientID: clientID, Weight: in.Weight}, Editable: true}, nil
}

func (s *stubChecks) Edit(context.Context, primitive.ObjectID, primitive.ObjectID, service.CheckInput) (*service.CheckView, error) {
	return nil, s.err
}

type stubDashboard struct {
	service.DashboardService
	dismissed map[string][]string
	ended     []string
}

func newStubDashboard() *stubDashboard {
	return &stubDashboard{dismissed: make(map[string][]string)}
}

func (s *stubDashboard) Dismiss(sessionID, itemID string) {
	s.dismissed[sessionID] = append(s.dismissed[sessionID], itemID)
}

func (s *stubDashboard) EndSession(sessionID string) {
	s.ended = append(s.ended, sessionID)
}

func (s *stubDashboard) Feed(_ context.Context, sessionID string) ([]lifecycle.Item, error) {
	return []lifecycle.Item{{ID: "new_check:1", Kind: lifecycle.KindNewCheck, ClientName: sessionID}}, nil
}

type stubChat struct {
	service.ChatService
	stream chan domain.Message
}

func (s *stubChat) Subscribe(_ context.Context, _, requester string) (<-chan domain.Message, error) {
	if requester == "stranger" {
		return nil, service.ErrNotParticipant
	}
	return s.stream, nil
}

type testServer struct {
	router    *gin.Engine
	auth      *stubAuth
	clients   *stubClients
	checks    *stubChecks
	dashboard *stubDashboard
	chat      *stubChat
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		router:    gin.New(),
		auth:      newStubAuth(),
		clients:   &stubClients{},
		checks:    &stubChecks{},
		dashboard: newStubDashboard(),
		chat:      &stubChat{stream: make(chan domain.Message, 4)},
	}
	SetupRoutes(ts.router, Services{
		Auth:      ts.auth,
		Clients:   ts.clients,
		Checks:    ts.checks,
		Dashboard: ts.dashboard,
		Chat:      ts.chat,
	}, logging.Nop())
	return ts
}

// closeNotifyingRecorder lets gin's Stream run against a recorder.
type closeNotifyingRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyingRecorder() *closeNotifyingRecorder {
	return &closeNotifyingRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (r *closeNotifyingRecorder) CloseNotify() <-chan bool {
	return r.closed
}
