package main

// stubChainClient satisfies auth.ChainClient without an actual chain
// connection. On-chain fee/ownership verification is explicitly out of
// scope (§1 Non-goals); this stub lets `serve` boot standalone, and a real
// deployment swaps it for a client that actually reads the chain.
type stubChainClient struct{}

func (stubChainClient) IsEntryFeePaid(wallet string) (bool, error) { return true, nil }
func (stubChainClient) OwnsAgent(wallet, agentID string) (bool, error) { return true, nil }
