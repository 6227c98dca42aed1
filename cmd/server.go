package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"blogmusic/logger"
	"blogmusic/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动音乐站服务器",
	Long:  `启动HTTP服务器，提供曲库、投稿、管理后台和播放器API`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting blogmusic server...", logger.String("addr", cfg.ServerAddr))
	if err := server.Run(ctx, cfg); err != nil {
		logger.Error("server stopped with error", logger.ErrorField(err))
		return err
	}
	logger.Info("Server exited properly")
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
