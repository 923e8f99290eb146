package storage

import (
	"fmt"
	"time"

	"github.com/cloudmesh/pipeline/pkg/types"
)

// PartitionStrategy names one of the four storage path layouts spec section
// 4.6 supports.
type PartitionStrategy string

const (
	PartitionByDate  PartitionStrategy = "date"
	PartitionByCloud PartitionStrategy = "cloud"
	PartitionByNode  PartitionStrategy = "node"
	PartitionFlat    PartitionStrategy = "flat"
)

// GeneratePath builds a replica's storage path per the configured partition
// strategy, mirroring _generate_storage_path exactly.
func GeneratePath(strategy PartitionStrategy, replica types.Replica, now time.Time) string {
	switch strategy {
	case PartitionByDate:
		return fmt.Sprintf("%04d/%02d/%02d/%s.dat", now.Year(), int(now.Month()), now.Day(), replica.ReplicaID)
	case PartitionByCloud:
		return fmt.Sprintf("%s/%s.dat", replica.Provider, replica.ReplicaID)
	case PartitionByNode:
		return fmt.Sprintf("%s/%s.dat", replica.TargetNode, replica.ReplicaID)
	default:
		return fmt.Sprintf("%s.dat", replica.ReplicaID)
	}
}
