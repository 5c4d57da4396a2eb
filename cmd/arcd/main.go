// Command arcd is a tiny bootstrap binary exercising the arc engine
// end to end: a form-echo route and a file-upload route, both wrapped
// in the ambient logging and recovery middleware.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/watt-toolkit/arc/pkg/arc"
	"github.com/watt-toolkit/arc/pkg/arc/middleware"
	"github.com/watt-toolkit/arc/pkg/arc/server"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	maxHeaderSize := flag.Int64("max-header-size", 16*1024, "maximum request header size in bytes")
	maxBodySize := flag.Int64("max-body-size", 32*1024*1024, "maximum request body size in bytes")
	readTimeout := flag.Duration("read-timeout", 60*time.Second, "per-read deadline")
	writeTimeout := flag.Duration("write-timeout", 60*time.Second, "per-write deadline")
	flag.Parse()

	routes := arc.NewRouteTable()
	routes.Handle("/", middleware.Logger(middleware.Recovery(handleIndex)))
	routes.Handle("/echo", middleware.Logger(middleware.Recovery(handleEcho)))
	routes.Handle("/upload", middleware.Logger(middleware.Recovery(handleUpload)))

	srv := server.New(server.Config{
		Addr:          *addr,
		Routes:        routes,
		MaxHeaderSize: *maxHeaderSize,
		MaxBodySize:   *maxBodySize,
		ReadTimeout:   *readTimeout,
		WriteTimeout:  *writeTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("arcd: listening on %s", *addr)
		errCh <- srv.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Println("arcd: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("arcd: shutdown error: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("arcd: serve error: %v", err)
		}
	}
}

func handleIndex(req *arc.Request, res *arc.Response) {
	res.HTML(200, "arcd is running")
	res.Send()
}

// handleEcho decodes a urlencoded or multipart form body and echoes
// the field values back as JSON. A decode failure is observed here as
// an empty form, per the request accessors' silent-empty policy, not
// as an error.
func handleEcho(req *arc.Request, res *arc.Response) {
	form := req.FormData()

	out, err := json.Marshal(form)
	if err != nil {
		res.JSON(500, `{"error":"internal error"}`)
		res.Send()
		return
	}
	res.JSON(200, string(out))
	res.Send()
}

// handleUpload accepts a multipart file upload and reports the bytes
// received per field, without persisting anything beyond the request.
func handleUpload(req *arc.Request, res *arc.Response) {
	files := req.Files()

	sizes := make(map[string]int64, len(files))
	for field, fs := range files {
		var total int64
		for _, f := range fs {
			n, _ := io.Copy(io.Discard, f.File)
			total += n
		}
		sizes[field] = total
	}

	out, err := json.Marshal(sizes)
	if err != nil {
		res.JSON(500, `{"error":"internal error"}`)
		res.Send()
		return
	}
	res.JSON(200, string(out))
	res.Send()
}
