package s3util

// projectTag is the URL-encoded S3 object tagging string for cost allocation.
const projectTag = "Project=claw-cam"

// ProjectTagging returns the tagging string for PutObjectInput. Every object
// the booth writes (payloads and exports) carries it.
func ProjectTagging() *string {
	t := projectTag
	return &t
}
