package object

import "fmt"

// BucketName derives the MinIO bucket a collection's file-field blobs live
// in, named {database}-{collection}.
func BucketName(database, collection string) string {
	return fmt.Sprintf("%s-%s", database, collection)
}

// ObjectKey derives the object path a record's file field is uploaded to.
func ObjectKey(collection, recordID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", collection, recordID, filename)
}
