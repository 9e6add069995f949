package loaders

import (
	"bufio"
	"cmp"
	"context"
	"encoding/binary"
	"io"
	"math"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets

	"github.com/df07/go-volumetric-pathtracer/pkg/core"
	"github.com/df07/go-volumetric-pathtracer/pkg/volume"
)

// VGridVersion is the container version written by WriteGrids
const VGridVersion = 1

var vgridMagic = [4]byte{'V', 'G', 'R', 'D'}

const maxGridNameLength = 1 << 12

type vgridHeader struct {
	Magic   [4]byte
	Version uint32
	Count   uint32
}

type vgridGridHeader struct {
	VoxelSize float64
	Origin    [3]float64
	LeafCount uint32
}

// WriteGrids encodes grids in the .vgrid container. Leaves are written in sorted order
// so equal grids always produce equal bytes.
func WriteGrids(w io.Writer, grids []*volume.Grid) error {
	bw := bufio.NewWriter(w)
	header := vgridHeader{Magic: vgridMagic, Version: VGridVersion, Count: uint32(len(grids))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for _, g := range grids {
		if err := writeGrid(bw, g); err != nil {
			return errors.Wrapf(err, "writing grid %q", g.Name())
		}
	}
	return bw.Flush()
}

func writeGrid(w io.Writer, g *volume.Grid) error {
	name := g.Name()
	if len(name) > maxGridNameLength {
		return errors.Errorf("name longer than %d bytes", maxGridNameLength)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(name))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}

	var leaves []*volume.LeafNode
	g.ForEachLeaf(func(l *volume.LeafNode) { leaves = append(leaves, l) })
	slices.SortFunc(leaves, func(a, b *volume.LeafNode) int {
		ao, bo := a.Origin(), b.Origin()
		return cmp.Or(cmp.Compare(ao.X, bo.X), cmp.Compare(ao.Y, bo.Y), cmp.Compare(ao.Z, bo.Z))
	})

	origin := g.Origin()
	gh := vgridGridHeader{
		VoxelSize: g.VoxelSize(),
		Origin:    [3]float64{origin.X, origin.Y, origin.Z},
		LeafCount: uint32(len(leaves)),
	}
	if err := binary.Write(w, binary.LittleEndian, gh); err != nil {
		return err
	}

	for _, l := range leaves {
		o := l.Origin()
		if err := binary.Write(w, binary.LittleEndian, [3]int32{int32(o.X), int32(o.Y), int32(o.Z)}); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, l.Values()); err != nil {
			return err
		}
	}
	return nil
}

// ReadGrids decodes a .vgrid container
func ReadGrids(r io.Reader) ([]*volume.Grid, error) {
	br := bufio.NewReader(r)
	var header vgridHeader
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	if header.Magic != vgridMagic {
		return nil, errors.Errorf("not a vgrid file (magic %q)", header.Magic[:])
	}
	if header.Version != VGridVersion {
		return nil, errors.Errorf("unsupported vgrid version %d", header.Version)
	}

	grids := make([]*volume.Grid, 0, min(header.Count, 16))
	for i := uint32(0); i < header.Count; i++ {
		g, err := readGrid(br)
		if err != nil {
			return nil, errors.Wrapf(err, "reading grid %d", i)
		}
		grids = append(grids, g)
	}
	return grids, nil
}

func readGrid(r io.Reader) (*volume.Grid, error) {
	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, err
	}
	if nameLen > maxGridNameLength {
		return nil, errors.Errorf("name length %d exceeds %d", nameLen, maxGridNameLength)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}

	var gh vgridGridHeader
	if err := binary.Read(r, binary.LittleEndian, &gh); err != nil {
		return nil, err
	}
	if !(gh.VoxelSize > 0) || math.IsInf(gh.VoxelSize, 0) {
		return nil, errors.Errorf("grid %q has invalid voxel size %v", name, gh.VoxelSize)
	}
	origin := core.NewVec3(gh.Origin[0], gh.Origin[1], gh.Origin[2])
	if !origin.IsFinite() {
		return nil, errors.Errorf("grid %q has non-finite origin %v", name, origin)
	}

	b := volume.NewGridBuilder(string(name), gh.VoxelSize, origin)
	var values [volume.LeafVoxels]float32
	for i := uint32(0); i < gh.LeafCount; i++ {
		var o [3]int32
		if err := binary.Read(r, binary.LittleEndian, &o); err != nil {
			return nil, errors.Wrapf(err, "reading leaf %d", i)
		}
		leafOrigin := volume.Coord{X: int(o[0]), Y: int(o[1]), Z: int(o[2])}
		if leafOrigin.Align(volume.LeafDim) != leafOrigin {
			return nil, errors.Errorf("leaf %d origin %v is not aligned", i, leafOrigin)
		}
		if err := binary.Read(r, binary.LittleEndian, &values); err != nil {
			return nil, errors.Wrapf(err, "reading leaf %d", i)
		}
		for j, v := range values {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, errors.Errorf("leaf %d voxel %d has non-finite value %v", i, j, v)
			}
		}
		b.SetLeaf(leafOrigin, &values)
	}
	return b.Build(), nil
}

// SelectGrids picks the density grid (required) and the temperature grid (optional) by name
func SelectGrids(grids []*volume.Grid) (density, temperature *volume.Grid, err error) {
	for _, g := range grids {
		switch g.Name() {
		case "density":
			density = g
		case "temperature":
			temperature = g
		}
	}
	if density == nil {
		return nil, nil, errors.New("no grid named \"density\"")
	}
	return density, temperature, nil
}

// ReadBlob reads a .vgrid object from an open bucket
func ReadBlob(ctx context.Context, bucket *blob.Bucket, key string) ([]*volume.Grid, error) {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", key)
	}
	defer r.Close()
	return ReadGrids(r)
}

// WriteBlob writes grids as a .vgrid object into an open bucket
func WriteBlob(ctx context.Context, bucket *blob.Bucket, key string, grids []*volume.Grid) error {
	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return errors.Wrapf(err, "creating %s", key)
	}
	if err := WriteGrids(w, grids); err != nil {
		w.Close()
		return err
	}
	return errors.Wrapf(w.Close(), "closing %s", key)
}

// OpenGrids reads grids from a local path or from a blob URL such as
// file:///data/volumes/fire.vgrid. The last path element of a URL is the object key.
func OpenGrids(ctx context.Context, location string) ([]*volume.Grid, error) {
	if !isURL(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.Wrap(err, "opening volume")
		}
		defer f.Close()
		grids, err := ReadGrids(f)
		return grids, errors.Wrapf(err, "reading %s", location)
	}

	bucketURL, key, err := splitBlobURL(location)
	if err != nil {
		return nil, err
	}
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bucket %s", bucketURL)
	}
	defer bucket.Close()
	return ReadBlob(ctx, bucket, key)
}

// SaveGrids writes grids to a local path or a blob URL, see OpenGrids
func SaveGrids(ctx context.Context, location string, grids []*volume.Grid) error {
	if !isURL(location) {
		f, err := os.Create(location)
		if err != nil {
			return errors.Wrap(err, "creating volume file")
		}
		if err := WriteGrids(f, grids); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	bucketURL, key, err := splitBlobURL(location)
	if err != nil {
		return err
	}
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return errors.Wrapf(err, "opening bucket %s", bucketURL)
	}
	defer bucket.Close()
	return WriteBlob(ctx, bucket, key, grids)
}

func isURL(location string) bool {
	return strings.Contains(location, "://")
}

// splitBlobURL splits scheme://host/dir/key?query into the bucket URL
// scheme://host/dir?query and the key
func splitBlobURL(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.Wrapf(err, "parsing %s", location)
	}
	key := path.Base(u.Path)
	if key == "/" || key == "." || key == "" {
		return "", "", errors.Errorf("blob URL %s has no object key", location)
	}
	u.Path = path.Dir(u.Path)
	return u.String(), key, nil
}
