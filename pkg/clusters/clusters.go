// Package clusters reads and writes per-resolution clusterings in the
// tab-separated interchange format consumed by downstream cluster-format
// loaders: one cluster per line as size, normalized quality, item list.
package clusters

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/canopyviz/canopy/pkg/mergetree"
)

// Filename returns the conventional file name for a resolution's clustering.
func Filename(resolution int) string {
	return fmt.Sprintf("clusters.%d.tsv", resolution)
}

// Write encodes a clustering to w: one cluster per line, tab-separated
// size, three-decimal normalized quality, and space-joined item list.
func Write(c mergetree.Clustering, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, cl := range c.Clusters {
		if _, err := fmt.Fprintf(bw, "%d\t%s\t%s\n",
			cl.Size,
			strconv.FormatFloat(cl.Quality, 'f', 3, 64),
			strings.Join(cl.Items, " ")); err != nil {
			return fmt.Errorf("write cluster: %w", err)
		}
	}
	return bw.Flush()
}

// WriteFile writes a clustering to its resolution-tagged file under dir.
// It returns the written path.
func WriteFile(c mergetree.Clustering, dir string) (string, error) {
	path := filepath.Join(dir, Filename(c.Resolution))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := Write(c, f); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Read decodes a clustering for the given resolution from r. Clusters read
// from files carry no forest node; they are suitable for map stitching and
// display but not for further cutting.
func Read(r io.Reader, resolution int) (mergetree.Clustering, error) {
	c := mergetree.Clustering{Resolution: resolution}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		cl, err := parseCluster(text, line)
		if err != nil {
			return mergetree.Clustering{}, err
		}
		c.Clusters = append(c.Clusters, cl)
	}
	if err := sc.Err(); err != nil {
		return mergetree.Clustering{}, fmt.Errorf("read clusters: %w", err)
	}
	return c, nil
}

// ReadFile reads the resolution-tagged clustering file under dir.
func ReadFile(dir string, resolution int) (mergetree.Clustering, error) {
	path := filepath.Join(dir, Filename(resolution))
	f, err := os.Open(path)
	if err != nil {
		return mergetree.Clustering{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, resolution)
}

func parseCluster(line string, n int) (mergetree.Cluster, error) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) != 3 {
		return mergetree.Cluster{}, fmt.Errorf("line %d: got %d fields, want 3", n, len(fields))
	}
	size, err := strconv.Atoi(fields[0])
	if err != nil {
		return mergetree.Cluster{}, fmt.Errorf("line %d: size %q: %w", n, fields[0], err)
	}
	quality, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return mergetree.Cluster{}, fmt.Errorf("line %d: quality %q: %w", n, fields[1], err)
	}
	items := strings.Fields(fields[2])
	if size != len(items) {
		return mergetree.Cluster{}, fmt.Errorf("line %d: size %d but %d items", n, size, len(items))
	}
	return mergetree.Cluster{Size: size, Quality: quality, Items: items}, nil
}
