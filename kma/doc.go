// Package kma is a kernel-style memory allocator that carves fixed-size pages obtained from a
// page.Provider into power-of-two blocks.
//
// Every block begins with an 8-byte header stored in the block's own memory. While a block is
// free the header links it into the free list for its size class; once it is handed out the
// header records the size class so that Deallocate can find its way back. Callers address their
// memory with a Pointer, a page id and payload offset pair, and read or write it through Payload.
//
// The default algorithm is a binary buddy system: blocks are split top-down from whole pages
// and merged back with their buddies on free, and a page goes back to the provider as soon as
// it has been merged back together. AlgorithmPowerOfTwo and AlgorithmPagePerRequest provide the
// two simpler strategies for comparison.
package kma
