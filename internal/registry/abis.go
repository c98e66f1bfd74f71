package registry

// ABI fragments used by the transaction builder and token reader.
const (
	ERC20MinimalABI = `[
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
	]`

	// Algebra-style router: exactInputSingle carries a deployer field and limitSqrtPrice.
	SwapRouterABI = `[
		{"name":"exactInputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"deployer","type":"address"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"limitSqrtPrice","type":"uint160"}]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
		{"name":"multicall","type":"function","stateMutability":"payable","inputs":[{"name":"data","type":"bytes[]"}],"outputs":[{"name":"results","type":"bytes[]"}]}
	]`

	LiquidityRouterABI = `[
		{"name":"addLiquidity","type":"function","stateMutability":"nonpayable","inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"},{"name":"deployer","type":"address"},{"name":"recipient","type":"address"},{"name":"amountADesired","type":"uint256"},{"name":"amountBDesired","type":"uint256"},{"name":"amountAMin","type":"uint256"},{"name":"amountBMin","type":"uint256"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amountA","type":"uint256"},{"name":"amountB","type":"uint256"},{"name":"liquidity","type":"uint128"}]}
	]`

	// create_lock and withdraw are encoded by selector; only the views are declared.
	VotingEscrowABI = `[
		{"name":"locked__end","type":"function","stateMutability":"view","inputs":[{"name":"_addr","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"increase_amount","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_value","type":"uint256"}],"outputs":[]}
	]`

	StakingABI = `[
		{"name":"stake","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_amount","type":"uint256"}],"outputs":[]},
		{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_amount","type":"uint256"}],"outputs":[]}
	]`

	VoterABI = `[
		{"name":"vote","type":"function","stateMutability":"nonpayable","inputs":[{"name":"gauge_addr","type":"address"},{"name":"weight","type":"uint256"}],"outputs":[]}
	]`
)
