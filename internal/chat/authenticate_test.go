package chat

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tlschat/internal/dependencies/mocks"
	"github.com/mcoot/tlschat/internal/model"
	"github.com/mcoot/tlschat/internal/protocol"
	"github.com/mcoot/tlschat/internal/services/auth"
	"github.com/mcoot/tlschat/internal/storage/memory"
	"github.com/mcoot/tlschat/internal/testutil"
)

type authOutcome struct {
	result AuthResult
	err    error
}

type AuthenticateSuite struct {
	suite.Suite
	store   *memory.Storage
	service *auth.Service
	ctx     context.Context
}

func TestAuthenticateSuite(t *testing.T) {
	suite.Run(t, new(AuthenticateSuite))
}

func (s *AuthenticateSuite) SetupTest() {
	s.store = memory.New()
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = auth.New(s.store, clk, auth.Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())
	s.ctx = context.Background()
}

// start runs Authenticate on a fresh connection in the background
func (s *AuthenticateSuite) start(authn Authenticator) (*Conn, *testClient, <-chan authOutcome) {
	conn, client := newTestConn(s.T(), "c1")
	out := make(chan authOutcome, 1)
	go func() {
		result, err := Authenticate(s.ctx, conn, authn, testutil.NopLogger())
		out <- authOutcome{result: result, err: err}
	}()
	return conn, client, out
}

func (s *AuthenticateSuite) wait(out <-chan authOutcome) authOutcome {
	select {
	case o := <-out:
		return o
	case <-time.After(waitTimeout):
		s.FailNow("authentication did not finish")
		return authOutcome{}
	}
}

func (s *AuthenticateSuite) TestRegisterSucceeds() {
	conn, client, out := s.start(s.service)

	client.send("alice/secret/Alice")
	client.expect(protocol.ReplyCorrect)

	o := s.wait(out)
	s.Require().NoError(o.err)
	s.Equal(AuthResult{State: StateRegisterOK, Login: "alice", DisplayName: "Alice"}, o.result)
	s.Equal("Alice", conn.DisplayName())
	s.Equal("alice", conn.Login())

	exists, err := s.store.Exists(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *AuthenticateSuite) TestLoginAfterRegistration() {
	_, err := s.service.Register(s.ctx, "alice", "secret", "Alice")
	s.Require().NoError(err)

	conn, client, out := s.start(s.service)

	client.send("alice/secret")
	client.expect(protocol.ReplyCorrect)

	o := s.wait(out)
	s.Require().NoError(o.err)
	s.Equal(StateLoginOK, o.result.State)
	s.Equal("Alice", conn.DisplayName())
}

func (s *AuthenticateSuite) TestRejectionsKeepSessionOpen() {
	_, err := s.service.Register(s.ctx, "alice", "secret", "Alice")
	s.Require().NoError(err)

	_, client, out := s.start(s.service)

	client.send("bob/secret")
	client.expect(protocol.ReplyUnknownLogin)

	client.send("alice/wrong")
	client.expect(protocol.ReplyInvalidPassword)

	client.send("alice/other/Alice2")
	client.expect(protocol.ReplyLoginExists)

	client.send("alice")
	client.expect(protocol.ReplyInvalidFormat)

	client.send("a/b/c/d")
	client.expect(protocol.ReplyInvalidFormat)

	client.send("alice/")
	client.expect(protocol.ReplyInvalidPassword)

	client.send("/anything")
	client.expect(protocol.ReplyUnknownLogin)

	client.send("alice//")
	client.expect(protocol.ReplyLoginExists)

	client.send("alice/secret")
	client.expect(protocol.ReplyCorrect)

	o := s.wait(out)
	s.Require().NoError(o.err)
	s.Equal(StateLoginOK, o.result.State)

	// Nothing but the original account was stored
	s.Equal(1, s.store.Count())
}

func (s *AuthenticateSuite) TestFieldsAreTrimmed() {
	_, client, out := s.start(s.service)

	client.send(" alice / secret / Alice ")
	client.expect(protocol.ReplyCorrect)

	o := s.wait(out)
	s.Require().NoError(o.err)
	s.Equal("alice", o.result.Login)
	s.Equal("Alice", o.result.DisplayName)
}

func (s *AuthenticateSuite) TestEmptyFieldsRegister() {
	_, client, out := s.start(s.service)

	client.send("carol/ / ")
	client.expect(protocol.ReplyCorrect)

	o := s.wait(out)
	s.Require().NoError(o.err)
	s.Equal(StateRegisterOK, o.result.State)
	s.Equal("carol", o.result.Login)
	s.Equal("", o.result.DisplayName)

	_, err := s.service.Login(s.ctx, "carol", "")
	s.NoError(err)
}

func (s *AuthenticateSuite) TestClientDisconnect() {
	_, client, out := s.start(s.service)

	client.close()

	o := s.wait(out)
	s.ErrorIs(o.err, io.EOF)
	s.Equal(StateAwaitingCredentials, o.result.State)
}

func (s *AuthenticateSuite) TestBackendFailureAbortsWithoutReply() {
	failing := auth.New(failingStore{}, mocks.NewMockClock(time.Now()), auth.Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())
	conn, client, out := s.start(failing)

	client.send("alice/secret")

	o := s.wait(out)
	s.ErrorIs(o.err, errBackend)

	s.Require().NoError(conn.Close())
	client.expectClosed()
}

var errBackend = errors.New("backend unavailable")

type failingStore struct{}

func (failingStore) Exists(context.Context, string) (bool, error) {
	return false, errBackend
}

func (failingStore) GetAccount(context.Context, string) (*model.Account, error) {
	return nil, errBackend
}

func (failingStore) InsertIfAbsent(context.Context, *model.Account) (bool, error) {
	return false, errBackend
}

func (failingStore) UpdateAccount(context.Context, *model.Account) error {
	return errBackend
}
