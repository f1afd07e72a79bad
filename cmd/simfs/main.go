package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/hanwen/go-fuse/v2/fuse"
	log "github.com/sirupsen/logrus"

	"simfs"
)

func init() {
	stdFormatter := &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	}
	log.SetFormatter(stdFormatter)
	log.SetOutput(os.Stderr)
	log.SetLevel(log.WarnLevel)
}

const usage = `Usage:
	simfs [flags] IMAGE init
	simfs [flags] IMAGE create NAME
	simfs [flags] IMAGE write NAME START LENGTH   (content read from stdin)
	simfs [flags] IMAGE read NAME START LENGTH
	simfs [flags] IMAGE delete NAME
	simfs [flags] IMAGE print
	simfs [flags] IMAGE check
	simfs [flags] IMAGE mount MOUNTPOINT`

func main() {
	debug := flag.Bool("debug", false, "print debug data")
	blockSize := flag.Uint("block-size", uint(simfs.DefaultGeometry.BlockSize), "block size for init")
	maxFiles := flag.Uint("max-files", uint(simfs.DefaultGeometry.MaxFiles), "file table capacity for init")
	maxBlocks := flag.Uint("max-blocks", uint(simfs.DefaultGeometry.MaxBlocks), "block table capacity for init")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
		log.Warn("Debug mode enabled")
	}
	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(2)
	}
	path, cmd, rest := args[0], args[1], args[2:]

	if cmd == "init" {
		g := simfs.Geometry{
			BlockSize: uint32(*blockSize),
			MaxFiles:  uint32(*maxFiles),
			MaxBlocks: uint32(*maxBlocks),
		}
		check(simfs.Format(path, g))
		return
	}

	img, err := simfs.OpenImage(path)
	check(err)

	switch cmd {
	case "create":
		need(rest, 1)
		check(img.Create(rest[0]))
	case "write":
		need(rest, 3)
		start, length := intArg(rest[1]), intArg(rest[2])
		check(img.Write(rest[0], start, length, bufio.NewReader(os.Stdin)))
	case "read":
		need(rest, 3)
		start, length := intArg(rest[1]), intArg(rest[2])
		out := bufio.NewWriter(os.Stdout)
		_, err := img.Read(rest[0], start, length, out)
		check(err)
		fmt.Fprintln(out)
		check(out.Flush())
	case "delete":
		need(rest, 1)
		check(img.Delete(rest[0]))
	case "print":
		snap, err := img.Stat()
		check(err)
		check(snap.Dump(os.Stdout))
	case "check":
		check(img.Check())
		fmt.Println("ok")
	case "mount":
		need(rest, 1)
		mount(img, rest[0], *debug)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func mount(img *simfs.Image, mountpoint string, debug bool) {
	fs := simfs.NewMountFS(img)
	server, err := fuse.NewServer(fs, mountpoint, &fuse.MountOptions{Name: "simfs", Debug: debug})
	if err != nil {
		log.Fatal(err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Serve()
	}()

	if err := server.WaitMount(); err != nil {
		log.Fatal(err)
	}
	log.Infof("mounted %s on %s", img.Path(), mountpoint)

	wg.Wait()
}

func need(args []string, n int) {
	if len(args) < n {
		flag.Usage()
		os.Exit(2)
	}
}

func intArg(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("invalid number %q", s)
	}
	return v
}

func check(err error) {
	if err != nil {
		log.Debugf("%+v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
