package history

import "fmt"

var explorers = map[int64]string{
	1:        "https://etherscan.io",
	3:        "https://ropsten.etherscan.io",
	4:        "https://rinkeby.etherscan.io",
	5:        "https://goerli.etherscan.io",
	42:       "https://kovan.etherscan.io",
	11155111: "https://sepolia.etherscan.io",
}

// TxURL links a transaction on the block explorer of chainID. Unknown chains get an
// empty string.
func TxURL(chainID int64, hash string) string {
	base, ok := explorers[chainID]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", base, hash)
}
