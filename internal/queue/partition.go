package queue

import "hash/fnv"

// Partition picks the partition for a task id. The same id always lands on the same partition.
func Partition(taskID string, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(taskID))
	return int(h.Sum32() % uint32(partitions))
}
