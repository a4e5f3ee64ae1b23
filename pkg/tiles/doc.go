// Package tiles reconstructs binary segmentation masks from the segment
// documents stored in a collection. The unit of read access is the tile: a
// rectangular sub-region of one z-layer of a 3D patch, assembled by
// querying only the segments near the requested bounds and rasterizing
// their run-length encoded pixel masks. Extraction cost scales with the
// segment count inside the query window, not with the 4096x4096 patch.
package tiles
