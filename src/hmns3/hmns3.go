// Package hmns3 is a tiny S3 stand-in for local development. It stores
// objects as files so the self-hosted content source can show images
// without a real bucket. Point s3.endpoint at it with s3.usePathStyle set.
package hmns3

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/website"
	"github.com/spf13/cobra"
)

func init() {
	var addr string
	s3Command := &cobra.Command{
		Use:   "s3 [storage folder]",
		Short: "Run a local s3 server that stores in the filesystem",
		Run: func(cmd *cobra.Command, args []string) {
			targetFolder := "./tmp/s3"
			if len(args) > 0 {
				targetFolder = args[0]
			}
			if err := os.MkdirAll(targetFolder, fs.ModePerm); err != nil {
				logging.Fatal().Err(err).Msg("failed to create storage folder")
			}

			logging.Info().Str("addr", addr).Str("folder", targetFolder).Msg("Serving local s3")
			err := http.ListenAndServe(addr, NewHandler(targetFolder))
			logging.Fatal().Err(err).Msg("local s3 server stopped")
		},
	}
	s3Command.Flags().StringVar(&addr, "addr", ":9004", "Address to listen on")

	website.WebsiteCommand.AddCommand(s3Command)
}

// NewHandler serves path-style requests (/bucket/key). Query parameters,
// including presigning signatures, are ignored.
func NewHandler(root string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key := bucketKey(r.URL.Path)
		logger := logging.Debug().Str("method", r.Method).Str("bucket", bucket).Str("key", key)

		path, ok := objectPath(root, bucket, key)
		if !ok {
			logger.Msg("rejected s3 request")
			http.Error(w, "bad bucket or key", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodPut:
			w.Header().Set("Location", "/"+bucket)
			bucketDir := filepath.Join(root, bucket)
			if err := os.MkdirAll(bucketDir, fs.ModePerm); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if key == "" {
				logger.Msg("created bucket")
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := os.WriteFile(path, body, 0644); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			logger.Int("len", len(body)).Msg("stored object")
		case http.MethodGet, http.MethodHead:
			f, err := os.Open(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					http.Error(w, "NoSuchKey", http.StatusNotFound)
				} else {
					http.Error(w, err.Error(), http.StatusInternalServerError)
				}
				return
			}
			defer f.Close()
			stat, err := f.Stat()
			if err != nil || stat.IsDir() {
				http.Error(w, "NoSuchKey", http.StatusNotFound)
				return
			}
			logger.Msg("served object")
			http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
		default:
			http.Error(w, "unimplemented method", http.StatusMethodNotAllowed)
		}
	})
}

// Keys may contain slashes. They are flattened to "~" so every bucket is a
// single directory.
func bucketKey(urlPath string) (string, string) {
	trimmed := strings.TrimPrefix(urlPath, "/")
	slashIdx := strings.IndexByte(trimmed, '/')
	if slashIdx == -1 {
		return trimmed, ""
	}
	return trimmed[:slashIdx], strings.ReplaceAll(trimmed[slashIdx+1:], "/", "~")
}

func objectPath(root, bucket, key string) (string, bool) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", false
	}
	if key == "" {
		return filepath.Join(root, bucket), true
	}
	if key == "." || key == ".." || strings.Contains(key, `\`) {
		return "", false
	}
	return filepath.Join(root, bucket, key), true
}
