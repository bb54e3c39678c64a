// Package lnd implements the Lightning gateway on top of an LND node reached
// over gRPC. Authentication uses the node TLS certificate and a hex encoded
// macaroon sent as per-RPC credentials.
package lnd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lnwallet-ledger/internal/config"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

var (
	_ lightning.Gateway        = (*Client)(nil)
	_ lightning.ChannelManager = (*Client)(nil)
)

// macaroonCredential attaches the macaroon to every RPC.
type macaroonCredential struct {
	macaroon string
}

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": m.macaroon}, nil
}

func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

// Client talks to a single LND node.
type Client struct {
	conn      *grpc.ClientConn
	lightning lnrpc.LightningClient
	router    routerrpc.RouterClient
	invoices  invoicesrpc.InvoicesClient

	pubkey         lightning.Pubkey
	requestTimeout time.Duration
	paymentTimeout time.Duration
	logger         *slog.Logger
}

// Dial connects to the node and reads its identity. It fails fast when the
// node is unreachable or the wallet is locked.
func Dial(ctx context.Context, logger *slog.Logger, cfg *config.LightningConfig) (*Client, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("could not load tls cert from %s: %w", cfg.TLSCertPath, err)
	}

	conn, err := grpc.NewClient(cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macaroonCredential{macaroon: cfg.MacaroonHex}),
	)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", cfg.Host, err)
	}

	lnClient := lnrpc.NewLightningClient(conn)

	infoCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	info, err := lnClient.GetInfo(infoCtx, &lnrpc.GetInfoRequest{})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to LND: %w", err)
	}

	logger = logger.With("component", "lnd", "pubkey", info.IdentityPubkey)
	logger.Info("Connected to LND",
		"alias", info.Alias,
		"block_height", info.BlockHeight,
		"synced_to_chain", info.SyncedToChain,
	)
	if !info.SyncedToChain {
		logger.Warn("LND is not synced to chain, payments may fail until sync completes")
	}

	c := newClient(logger, lnClient, routerrpc.NewRouterClient(conn), invoicesrpc.NewInvoicesClient(conn),
		lightning.Pubkey(info.IdentityPubkey), cfg.RequestTimeout, cfg.PaymentTimeout)
	c.conn = conn
	return c, nil
}

func newClient(
	logger *slog.Logger,
	ln lnrpc.LightningClient,
	router routerrpc.RouterClient,
	invoices invoicesrpc.InvoicesClient,
	pubkey lightning.Pubkey,
	requestTimeout, paymentTimeout time.Duration,
) *Client {
	return &Client{
		lightning:      ln,
		router:         router,
		invoices:       invoices,
		pubkey:         pubkey,
		requestTimeout: requestTimeout,
		paymentTimeout: paymentTimeout,
		logger:         logger,
	}
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) DefaultPubkey() lightning.Pubkey {
	return c.pubkey
}

// IsLocal reports whether pubkey is the node this client is connected to.
func (c *Client) IsLocal(pubkey lightning.Pubkey) bool {
	return pubkey == c.pubkey
}

func (c *Client) withRequestTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.requestTimeout)
}
