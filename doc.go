// Package libetude implements an on-device neural-voice-synthesis inference
// engine: a dense tensor engine, a kernel dispatcher gated on hardware
// features, a typed DSP block graph, the LEF/LEFX model container formats,
// and a vocoder runtime built on top of them.
//
// # Model containers
//
// Models are distributed as LEF files (internal/container/lef): a header,
// bounded metadata, a layer index, and compressed layer payloads, loadable
// either fully memory-mapped or on demand through a bounded LRU cache.
// Voice-specific adaptations layer on top as LEFX extensions
// (internal/container/lefx), binding to a base model by hash/name/version
// and applying per-layer deltas.
//
// # Vocoder
//
// VocoderContext is the public entry point: Create loads a model and wires
// a small DSP diagram (internal/graph) driving mel-to-audio synthesis in
// either batch or streaming mode. See VocoderContext for the full surface.
package libetude
