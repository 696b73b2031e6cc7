package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/PaulBabatuyi/cvideo/internal/client"
)

const defaultServer = "http://localhost:8080"

var (
	serverURL string
	timeout   time.Duration
	listMeta  bool

	historyLimit int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient() (*client.VideoClient, error) {
	vc, err := client.NewVideoClient(serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return vc, nil
}

// commandContext is cancelled on interrupt or when --timeout elapses.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

var rootCmd = &cobra.Command{
	Use:          "cvideo-client",
	Short:        "Upload, list and delete videos on a cvideo server",
	SilenceUsage: true,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a video file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vc, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		res, err := vc.UploadFile(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded: %s\n", res.Filename)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vc, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		out := cmd.OutOrStdout()
		if !listMeta {
			names, err := vc.List(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		videos, err := vc.ListWithMeta(ctx)
		if err != nil {
			return err
		}
		// Oldest first, same as the listing page.
		sort.Slice(videos, func(i, j int) bool { return videos[i].MTime.Before(videos[j].MTime) })
		for _, v := range videos {
			fmt.Fprintf(out, "%s  %s\n", v.MTime.Local().Format(time.DateTime), v.Name)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vc, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := vc.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %s\n", args[0])
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show recorded uploads and deletes of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vc, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		events, err := vc.History(ctx, args[0], historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range events {
			line := fmt.Sprintf("%s  %-8s  %s", e.At.Local().Format(time.DateTime), e.Type, e.Filename)
			if e.Size > 0 {
				line += fmt.Sprintf(" (%d bytes)", e.Size)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <name> [output]",
	Short: "Download a stored video",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vc, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		output := filepath.Base(args[0])
		if len(args) == 2 {
			output = args[1]
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}

		n, err := vc.Download(ctx, args[0], f)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(output)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloaded: %s (%d bytes)\n", output, n)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "cvideo server base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "overall request timeout (0 disables)")
	listCmd.Flags().BoolVar(&listMeta, "meta", false, "include modification times, oldest first")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum number of events (server default when 0)")

	rootCmd.AddCommand(uploadCmd, listCmd, deleteCmd, historyCmd, downloadCmd)
}
