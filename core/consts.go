package core

import (
	"time"
)

const (
	// records older than this are invisible to reads and purged by the store
	TRANSACTION_TTL = 24 * time.Hour

	DEFAULT_CHAIN                = ChainMatic
	DEFAULT_CONTRACT_NAME        = "Game Contract Polygon"
	DEFAULT_CONTRACT_DESCRIPTION = "Default game contract used for minting game tokens"

	DEFAULT_TRANSACTION_POLL_INTERVAL    = 1000 * time.Millisecond
	DEFAULT_MAX_TRANSACTION_POLL_COUNT   = 20
	DEFAULT_DELAY_AFTER_CONFIRMATION     = 16000 * time.Millisecond
	DEFAULT_CONTRACT_POLL_INTERVAL       = time.Second
	DEFAULT_CONTRACT_CONFIRM_TIMEOUT     = 5 * time.Minute
	DEFAULT_WALLET_DESCRIPTION           = "Game wallet"
	INVENTORY_TRANSACTION_OPERATION_NAME = "StartInventoryTransaction"
	MINT_BATCH_OPERATION_NAME            = "MintBatch"
	TRANSFER_TO_PLAYER_OPERATION_NAME    = "TransferItemToPlayer"
	TRANSFER_EXTERNAL_OPERATION_NAME     = "TransferItemExternal"
)
