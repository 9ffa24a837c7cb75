package export

// MaxLods is the number of detail levels of a mesh export.
const MaxLods = 8

// Progress shares. A successful mesh export adds up to exactly 100:
// preinit + sum(lodWeights) + decimation*(MaxLods-1) + raw mesh + finalize.
const (
	preinitWeight    = 0.5
	decimationWeight = 6
	rawMeshWeight    = 3
	finalizeWeight   = 1

	pointParseWeight     = 20
	pointSerializeWeight = 10
	pointUploadWeight    = 68.5
)

var lodWeights = [MaxLods]float64{13, 12, 10.5, 8, 5, 2.5, 1.5, 1}

// LodWeight returns the progress share of one LOD's own work.
func LodWeight(lod int) float64 {
	if lod < 0 || lod >= MaxLods {
		return lodWeights[MaxLods-1]
	}
	return lodWeights[lod]
}

// Shares of a LOD weight: parse, split and serialize take 1/18 each, the
// JSON upload 2/3 and the texture upload 1/6.
func stageShare(w float64) float64   { return w / 18 }
func jsonShare(w float64) float64    { return 2 * w / 3 }
func textureShare(w float64) float64 { return w / 6 }
