package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cloudmesh/pipeline/pkg/types"
)

func TestGeneratePathByDate(t *testing.T) {
	when := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	path := GeneratePath(PartitionByDate, types.Replica{ReplicaID: "r1"}, when)
	assert.Equal(t, "2026/03/05/r1.dat", path)
}

func TestGeneratePathByCloud(t *testing.T) {
	path := GeneratePath(PartitionByCloud, types.Replica{ReplicaID: "r1", Provider: types.ProviderAWS}, time.Now())
	assert.Equal(t, "aws/r1.dat", path)
}

func TestGeneratePathByNode(t *testing.T) {
	path := GeneratePath(PartitionByNode, types.Replica{ReplicaID: "r1", TargetNode: "node-1"}, time.Now())
	assert.Equal(t, "node-1/r1.dat", path)
}

func TestGeneratePathFlat(t *testing.T) {
	path := GeneratePath(PartitionFlat, types.Replica{ReplicaID: "r1"}, time.Now())
	assert.Equal(t, "r1.dat", path)
}

func TestGeneratePathUnknownStrategyDefaultsFlat(t *testing.T) {
	path := GeneratePath(PartitionStrategy("bogus"), types.Replica{ReplicaID: "r1"}, time.Now())
	assert.Equal(t, "r1.dat", path)
}
