package lef

import "hash/crc32"

// ComputeModelHash derives a deterministic model hash from the model's
// metadata and compressed layer payloads, stored in the header per spec
// §4.E. The hash folds in each layer's payload in ascending layer-id order
// so the same (meta, weights) pair always produces the same hash
// regardless of build-time layer ordering.
func ComputeModelHash(meta *ModelMeta, layerPayloadsByID map[int32][]byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(meta.Encode())

	ids := make([]int32, 0, len(layerPayloadsByID))
	for id := range layerPayloadsByID {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}

	for _, id := range ids {
		h.Write(layerPayloadsByID[id])
	}
	return h.Sum32()
}
