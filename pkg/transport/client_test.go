package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/peersync/peersync-go/pkg/response"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) CheckPeer(ctx context.Context, src PeerSource, peer string, fatalOnMismatch bool) (bool, error) {
	args := m.Called(ctx, src, peer, fatalOnMismatch)
	return args.Bool(0), args.Error(1)
}

// startTLSHandler implements the server side of the "ssl" upgrade followed
// by one echoed line.
func startTLSHandler(ctx context.Context, sess *Session) {
	ch := sess.Channel()
	line, err := ch.ReadLineString(64)
	if err != nil {
		return
	}
	if line != StartTLSCommand {
		ch.Printf("%s\n", response.Text(response.ErrSSLExpected))
		return
	}
	if _, err := ch.Printf("%s\n", response.Text(response.OKActivatingSSL)); err != nil {
		return
	}
	if err := sess.ActivateTLS(ctx, RoleServer); err != nil {
		return
	}

	line, err = ch.ReadLineString(256)
	if err != nil {
		return
	}
	ch.WriteString(response.Line(response.OKCmdFinished, line))
}

func TestClientDialPlain(t *testing.T) {
	_, resolver := startServer(t, ServerConfig{Handler: startTLSHandler})

	client := NewClient(ClientConfig{Resolver: resolver})
	sess, err := client.Dial(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	defer sess.Close()

	assert.False(t, sess.TLSActive())
}

func TestClientDialStartTLS(t *testing.T) {
	_, resolver := startServer(t, ServerConfig{
		Options: writeIdentity(t, "server"),
		Handler: startTLSHandler,
	})

	verifier := &mockVerifier{}
	verifier.On("CheckPeer", mock.Anything, mock.Anything, "127.0.0.1", true).Return(true, nil)

	client := NewClient(ClientConfig{
		Resolver:        resolver,
		Options:         writeIdentity(t, "client"),
		StartTLS:        true,
		Verifier:        verifier,
		FatalOnMismatch: true,
	})

	sess, err := client.Dial(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	defer sess.Close()

	assert.True(t, sess.TLSActive())
	verifier.AssertExpectations(t)

	_, err = sess.Channel().Printf("secret\n")
	require.NoError(t, err)
	line, err := sess.Channel().ReadLineString(256)
	require.NoError(t, err)
	assert.Equal(t, "OK (cmd_finished). secret", line)
}

func TestClientDialUntrustedPeer(t *testing.T) {
	_, resolver := startServer(t, ServerConfig{
		Options: writeIdentity(t, "server"),
		Handler: startTLSHandler,
	})

	verifier := &mockVerifier{}
	verifier.On("CheckPeer", mock.Anything, mock.Anything, "127.0.0.1", false).Return(false, nil)

	client := NewClient(ClientConfig{
		Resolver: resolver,
		Options:  writeIdentity(t, "client"),
		StartTLS: true,
		Verifier: verifier,
	})

	sess, err := client.Dial(context.Background(), "127.0.0.1")
	assert.ErrorIs(t, err, ErrUntrustedPeer)
	assert.Nil(t, sess)
	verifier.AssertExpectations(t)
}

func TestClientDialUnexpectedResponse(t *testing.T) {
	_, resolver := startServer(t, ServerConfig{
		Handler: func(ctx context.Context, sess *Session) {
			sess.Channel().ReadLineString(64)
			sess.Channel().Printf("%s\n", response.Text(response.ErrUnknownCommand))
		},
	})

	client := NewClient(ClientConfig{
		Resolver: resolver,
		Options:  writeIdentity(t, "client"),
		StartTLS: true,
	})

	_, err := client.Dial(context.Background(), "127.0.0.1")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.False(t, IsFatal(err))
}
