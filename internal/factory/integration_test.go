package factory

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tlschat/internal/chat"
	"github.com/mcoot/tlschat/internal/client"
	"github.com/mcoot/tlschat/internal/protocol"
	"github.com/mcoot/tlschat/internal/server"
	"github.com/mcoot/tlschat/internal/testutil"
)

// IntegrationSuite runs the full stack over real TLS connections
type IntegrationSuite struct {
	suite.Suite
	hub bool

	app    *TestApp
	server *server.Server
	cert   *testutil.TestCert
	ctx    context.Context
	cancel context.CancelFunc
}

func TestIntegrationSuiteLockedRegistry(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func TestIntegrationSuiteHub(t *testing.T) {
	suite.Run(t, &IntegrationSuite{hub: true})
}

func (s *IntegrationSuite) SetupSuite() {
	s.cert = testutil.NewTestCert(s.T())
}

func (s *IntegrationSuite) SetupTest() {
	if s.hub {
		hub := chat.NewHub(testutil.NopLogger())
		go hub.Run()
		s.T().Cleanup(hub.Close)
		s.app = NewTestAppWithRegistry(hub)
	} else {
		s.app = NewTestApp()
	}

	cfg := server.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = 2 * time.Second
	s.server = server.New(s.app.ConnHandler(), s.cert.ServerConfig(s.T()), cfg, testutil.NopLogger())
	s.Require().NoError(s.server.Listen())
	go func() { _ = s.server.Serve() }()

	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)
}

func (s *IntegrationSuite) TearDownTest() {
	s.cancel()
	s.NoError(s.server.Shutdown(context.Background()))
}

func (s *IntegrationSuite) dial() *client.Client {
	c, err := client.Dial(s.ctx, s.server.Addr(), s.cert.ClientConfig(s.T()))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })
	return c
}

func (s *IntegrationSuite) register(login, name string) *client.Client {
	c := s.dial()
	s.Require().NoError(c.Register(s.ctx, login, "pw-"+login, name))
	return c
}

func (s *IntegrationSuite) waitForSessions(n int) {
	s.Eventually(func() bool {
		return s.app.Registry.Count() == n
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *IntegrationSuite) receive(c *client.Client) string {
	msg, err := c.Receive(s.ctx)
	s.Require().NoError(err)
	return msg
}

func (s *IntegrationSuite) TestRegisterThenLogin() {
	first := s.register("alice", "Alice")
	s.Require().NoError(first.Exit(s.ctx, nil))

	second := s.dial()
	s.Require().NoError(second.Login(s.ctx, "alice", "pw-alice"))
	s.waitForSessions(1)

	s.Require().NoError(second.Send("hi"))
	s.Equal("[12:00:00]Alice:hi", s.receive(second))
}

func (s *IntegrationSuite) TestCredentialRejections() {
	s.register("alice", "Alice")

	c := s.dial()

	err := c.Register(s.ctx, "alice", "other", "Imposter")
	s.ErrorIs(err, client.ErrRejected)
	s.ErrorContains(err, protocol.ReplyLoginExists)

	err = c.Login(s.ctx, "bob", "pw")
	s.ErrorContains(err, protocol.ReplyUnknownLogin)

	err = c.Login(s.ctx, "alice", "wrong")
	s.ErrorContains(err, protocol.ReplyInvalidPassword)

	s.Require().NoError(c.Send("no separators"))
	s.Equal(protocol.ReplyInvalidFormat, s.receive(c))

	// Same connection can still authenticate
	s.Require().NoError(c.Login(s.ctx, "alice", "pw-alice"))
	s.Equal(1, s.app.Memory.Count())
}

func (s *IntegrationSuite) TestFanOutAndExit() {
	a := s.register("a", "A")
	b := s.register("b", "B")
	c := s.register("c", "C")
	s.waitForSessions(3)

	s.Require().NoError(a.Send("hello"))
	for _, cl := range []*client.Client{a, b, c} {
		s.Equal("[12:00:00]A:hello", s.receive(cl))
	}

	s.Require().NoError(a.Exit(s.ctx, nil))
	_, err := a.Receive(s.ctx)
	s.ErrorIs(err, io.EOF)
	s.waitForSessions(2)

	s.app.MockClock.Advance(90 * time.Second)
	s.Require().NoError(b.Send("still here"))
	s.Equal("[12:01:30]B:still here", s.receive(b))
	s.Equal("[12:01:30]B:still here", s.receive(c))
}

func (s *IntegrationSuite) TestDisconnectDeregisters() {
	a := s.register("a", "A")
	s.register("b", "B")
	s.waitForSessions(2)

	s.Require().NoError(a.Close())
	s.waitForSessions(1)
}

func (s *IntegrationSuite) TestShutdownEndsSessions() {
	a := s.register("a", "A")
	s.waitForSessions(1)

	s.Require().NoError(s.server.Shutdown(context.Background()))

	_, err := a.Receive(s.ctx)
	s.Error(err)
	s.Equal(0, s.app.Registry.Count())
}

func (s *IntegrationSuite) TestConcurrentSessions() {
	const sessions = 10

	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.runSession(i)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.waitForSessions(0)
}

// runSession registers, says hello, sees its own line and exits
func (s *IntegrationSuite) runSession(i int) error {
	c, err := client.Dial(s.ctx, s.server.Addr(), s.cert.ClientConfig(s.T()))
	if err != nil {
		return err
	}
	defer c.Close()

	login := fmt.Sprintf("user%d", i)
	if err := c.Register(s.ctx, login, "pw", fmt.Sprintf("User%d", i)); err != nil {
		return err
	}

	text := fmt.Sprintf("hello from %d", i)
	if err := c.Send(text); err != nil {
		return err
	}
	if _, err := c.WaitFor(s.ctx, func(m string) bool { return client.IsChatLine(m, text) }); err != nil {
		return fmt.Errorf("session %d: own message: %w", i, err)
	}
	return c.Exit(s.ctx, nil)
}
