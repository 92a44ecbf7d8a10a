// Package tileindex maps document-space rectangles to the integer tile
// coordinates they overlap.
//
// Tile (x, y) covers [x*size, (x+1)*size) × [y*size, (y+1)*size). A maximum
// coordinate that lands exactly on a tile boundary belongs to the previous
// tile, so a rectangle [0,0]-[256,256] at size 256 covers only tile (0,0).
//
// The package also provides KeySet, the insertion-ordered set of tile keys
// used for pending bake bookkeeping.
package tileindex
