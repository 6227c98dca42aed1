package cmd

import (
	"fmt"

	"blogmusic/core/resolver"

	"github.com/spf13/cobra"
)

var resolvePlatform string

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "解析音频分享链接",
	Long:  `识别链接所属平台，输出主播放地址和备用地址。`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		platform := resolver.IdentifyPlatform(args[0])
		if resolvePlatform != "" {
			platform = resolver.ParsePlatform(resolvePlatform)
		}

		rs := resolver.Resolve(args[0], platform)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "platform: %s\n", rs.Platform)
		fmt.Fprintf(out, "primary:  %s\n", rs.PrimaryURL)
		if len(rs.FallbackURLs) == 0 {
			fmt.Fprintln(out, "fallbacks: (none)")
			return
		}
		fmt.Fprintln(out, "fallbacks:")
		for i, u := range rs.FallbackURLs {
			fmt.Fprintf(out, "  %d. %s\n", i+1, u)
		}
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolvePlatform, "platform", "", "指定平台 (direct, googledrive, dropbox, soundcloud)，默认自动识别")
}
