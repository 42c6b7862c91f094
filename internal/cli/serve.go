package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
	"github.com/ZanzyTHEbar/friendlink-go/internal/server"
	"github.com/ZanzyTHEbar/friendlink-go/pkg/friendlink"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serviceGraph adapts the service to the server's neighbour lookup.
type serviceGraph struct{ svc *friendlink.Service }

func (g serviceGraph) NeighborsOf(ctx context.Context, id apptype.NodeID) ([]apptype.Node, error) {
	return g.svc.Neighbors(ctx, id)
}

func newServeCmd(a *app) *cobra.Command {
	var transport, addr, endpoint string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recommendations as MCP tools over stdio or SSE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srvCfg := a.cfg.Server
			flags := cmd.Flags()
			if flags.Changed("transport") {
				srvCfg.Transport = transport
			}
			if flags.Changed("addr") {
				srvCfg.Addr = addr
			}
			if flags.Changed("sse-endpoint") {
				srvCfg.Endpoint = endpoint
			}

			ctx := cmd.Context()
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer a.closeService(svc)

			model, err := svc.Model(ctx)
			if err != nil {
				if errors.Is(err, apptype.ErrModelNotFound) {
					return fmt.Errorf("%w: run `friendlink train` first", err)
				}
				return err
			}

			var graph server.Neighborhood
			if info, err := svc.GraphInfo(ctx); err != nil {
				a.logger.Warn("Graph artifact unavailable; known neighbors must be passed explicitly", zap.Error(err))
			} else {
				a.logger.Info("Graph artifact available", zap.Int("nodes", info.Nodes), zap.Int("edges", info.Edges))
				graph = serviceGraph{svc: svc}
			}

			mcpServer := server.NewMCPServer(model, graph, a.cfg.Recommend, a.logger)
			a.logger.Info("Starting FriendLink MCP server",
				zap.String("transport", srvCfg.Transport),
				zap.String("model_run_id", model.Meta.RunID.String()),
				zap.Int("vocabulary", model.Meta.VocabularySize),
			)

			switch srvCfg.Transport {
			case "stdio":
				err = mcpServer.Run(ctx)
			case "sse":
				err = mcpServer.RunSSE(ctx, srvCfg.Addr, srvCfg.Endpoint)
			default:
				return apptype.Configurationf("unknown transport: %s (expected: stdio or sse)", srvCfg.Transport)
			}
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("server error: %w", err)
			}
			a.logger.Info("Server stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&transport, "transport", "stdio", "transport to use: stdio or sse")
	f.StringVar(&addr, "addr", ":8080", "address to listen on when using SSE transport")
	f.StringVar(&endpoint, "sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
	return cmd
}
