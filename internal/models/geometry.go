// Package models holds the plain data types shared by the scanning engines,
// the CLI, and the report writers.
package models

// SectorSize is the fixed refinement unit, independent of the block size.
const SectorSize = 512

// Geometry is the resolved set of tunables for one image.
type Geometry struct {
	Profile     string  `json:"profile,omitempty"`
	ImageSize   int64   `json:"image_size"`
	BlockSize   int64   `json:"block_size"`
	TotalBlocks int64   `json:"total_blocks"`
	SampleSize  int64   `json:"sample_size"`
	TailSize    int64   `json:"tail_size"`
	Candidates  []int64 `json:"candidates"`
}

// SampleBlocks returns the number of blocks covering the sample region.
func (g *Geometry) SampleBlocks() int64 {
	return ceilDiv(g.SampleSize, g.BlockSize)
}

// TailBlocks returns the number of blocks covering the tail window.
func (g *Geometry) TailBlocks() int64 {
	return ceilDiv(g.TailSize, g.BlockSize)
}

// TailStart returns the byte offset where the tail window begins.
func (g *Geometry) TailStart() int64 {
	return g.ImageSize - g.TailSize
}

// Block returns the block window at index i, shortened at end of image.
func (g *Geometry) Block(i int64) Block {
	off := i * g.BlockSize
	length := g.BlockSize
	if off+length > g.ImageSize {
		length = g.ImageSize - off
	}
	return Block{Index: i, Offset: off, Length: length}
}

// Block is a fixed-size window over the image. Length is shorter only for
// the final block.
type Block struct {
	Index  int64 `json:"index"`
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

// End returns the exclusive end offset of the block.
func (b Block) End() int64 {
	return b.Offset + b.Length
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
