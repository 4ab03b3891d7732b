package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/aulalabs/knowledge-core/internal/core/ports/driving"
	"github.com/aulalabs/knowledge-core/internal/logger"
)

// settleDelay gives editors and downloads time to finish writing a
// file before it is read.
const settleDelay = 500 * time.Millisecond

var watchCategory string

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Watch a directory and ingest new files",
	Long: `Watches a directory and ingests every file created in it.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchCategory, "category", "c", "", "category for ingested documents")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	scope, err := tenantScope()
	if err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(args[0]); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	cmd.Printf("Watching %s, press Ctrl-C to stop\n", args[0])

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			ingestWatchedFile(cmd, scope.TeacherID, scope.SchoolID, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		case <-stop:
			cmd.Println("Stopping, waiting for in-flight processing...")
			ingestService.Wait()
			return nil
		}
	}
}

func ingestWatchedFile(cmd *cobra.Command, teacherID, schoolID, path string) {
	fileName := filepath.Base(path)
	if strings.HasPrefix(fileName, ".") {
		return
	}

	time.Sleep(settleDelay)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Reading %s: %v", path, err)
		return
	}

	doc, err := ingestService.Ingest(context.Background(), driving.UploadRequest{
		TeacherID: teacherID,
		SchoolID:  schoolID,
		Title:     strings.TrimSuffix(fileName, filepath.Ext(fileName)),
		Category:  watchCategory,
		FileName:  fileName,
		MIMEType:  detectMIME(fileName),
		Data:      data,
	})
	if err != nil {
		logger.Warn("Ingesting %s: %v", path, err)
		return
	}
	cmd.Printf("Ingesting %s as document %s\n", fileName, doc.ID)
}
