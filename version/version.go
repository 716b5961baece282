package version

var (
	// AnomaSemVer is the used as the fallback version of the node
	// when not using git describe. It is formatted with semantic versioning.
	AnomaSemVer = "0.2.0"

	// GitCommitHash is the git commit hash of the release, it is set at build time.
	GitCommitHash = ""
)

// MempoolProtocol versions the coordinator's event and storage formats. A
// node only replays seeds produced by the same protocol version.
const MempoolProtocol uint64 = 1
