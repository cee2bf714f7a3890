package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"zenbeasts/crypto"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("ZENBEASTS_RPC_TOKEN")

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		generateKey()
	case "account":
		if len(args) < 2 {
			fmt.Println("Usage: account <address>")
			return
		}
		query("zb_getAccount", map[string]interface{}{"address": args[1]})
	case "supply":
		query("zb_tokenSupply", nil)
	case "config":
		query("zb_getConfig", nil)
	case "beast":
		if len(args) < 2 {
			fmt.Println("Usage: beast <beastId>")
			return
		}
		query("zb_getBeast", map[string]interface{}{"beastId": args[1]})
	case "mint":
		if len(args) < 4 {
			fmt.Println("Usage: mint <caller> <name> <seed> [metadataUri]")
			return
		}
		seed, err := strconv.ParseUint(args[3], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid seed.")
			return
		}
		params := map[string]interface{}{"caller": args[1], "name": args[2], "seed": seed}
		if len(args) > 4 {
			params["metadataUri"] = args[4]
		}
		mutate("zb_mint", params)
	case "activity":
		if len(args) < 3 {
			fmt.Println("Usage: activity <caller> <beastId> [activityType]")
			return
		}
		params := map[string]interface{}{"caller": args[1], "beastId": args[2]}
		if len(args) > 3 {
			kind, err := strconv.ParseUint(args[3], 10, 8)
			if err != nil {
				fmt.Println("Error: invalid activity type.")
				return
			}
			params["activityType"] = kind
		}
		mutate("zb_performActivity", params)
	case "claim":
		if len(args) < 3 {
			fmt.Println("Usage: claim <caller> <beastId>")
			return
		}
		mutate("zb_claimRewards", map[string]interface{}{"caller": args[1], "beastId": args[2]})
	case "preview-upgrade":
		if len(args) < 3 {
			fmt.Println("Usage: preview-upgrade <beastId> <traitIndex>")
			return
		}
		index, err := strconv.ParseUint(args[2], 10, 8)
		if err != nil {
			fmt.Println("Error: invalid trait index.")
			return
		}
		query("zb_previewUpgrade", map[string]interface{}{"beastId": args[1], "traitIndex": index})
	case "upgrade":
		if len(args) < 5 {
			fmt.Println("Usage: upgrade <caller> <beastId> <traitIndex> <payment>")
			return
		}
		index, err := strconv.ParseUint(args[3], 10, 8)
		if err != nil {
			fmt.Println("Error: invalid trait index.")
			return
		}
		payment, err := strconv.ParseUint(args[4], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid payment.")
			return
		}
		mutate("zb_upgradeTrait", map[string]interface{}{
			"caller": args[1], "beastId": args[2], "traitIndex": index, "payment": payment,
		})
	case "preview-breeding":
		if len(args) < 3 {
			fmt.Println("Usage: preview-breeding <parentA> <parentB>")
			return
		}
		query("zb_previewBreeding", map[string]interface{}{"parentA": args[1], "parentB": args[2]})
	case "breed":
		if len(args) < 7 {
			fmt.Println("Usage: breed <caller> <parentA> <parentB> <name> <seed> <payment> [metadataUri]")
			return
		}
		seed, err := strconv.ParseUint(args[5], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid seed.")
			return
		}
		payment, err := strconv.ParseUint(args[6], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid payment.")
			return
		}
		params := map[string]interface{}{
			"caller": args[1], "parentA": args[2], "parentB": args[3],
			"name": args[4], "seed": seed, "payment": payment,
		}
		if len(args) > 7 {
			params["metadataUri"] = args[7]
		}
		mutate("zb_breed", params)
	case "transfer":
		if len(args) < 4 {
			fmt.Println("Usage: transfer <caller> <beastId> <newOwner>")
			return
		}
		mutate("zb_updateOwner", map[string]interface{}{
			"caller": args[1], "beastId": args[2], "newOwner": args[3],
		})
	case "unlock-ability":
		if len(args) < 6 {
			fmt.Println("Usage: unlock-ability <caller> <beastId> <slot> <abilityId> <payment>")
			return
		}
		slot, err := strconv.ParseUint(args[3], 10, 8)
		if err != nil {
			fmt.Println("Error: invalid ability slot.")
			return
		}
		ability, err := strconv.ParseUint(args[4], 10, 8)
		if err != nil {
			fmt.Println("Error: invalid ability id.")
			return
		}
		payment, err := strconv.ParseUint(args[5], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid payment.")
			return
		}
		mutate("zb_unlockAbility", map[string]interface{}{
			"caller": args[1], "beastId": args[2], "traitIndex": slot,
			"abilityId": ability, "payment": payment,
		})
	case "upgrade-ability":
		if len(args) < 5 {
			fmt.Println("Usage: upgrade-ability <caller> <beastId> <slot> <payment>")
			return
		}
		slot, err := strconv.ParseUint(args[3], 10, 8)
		if err != nil {
			fmt.Println("Error: invalid ability slot.")
			return
		}
		payment, err := strconv.ParseUint(args[4], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid payment.")
			return
		}
		mutate("zb_upgradeAbility", map[string]interface{}{
			"caller": args[1], "beastId": args[2], "traitIndex": slot, "payment": payment,
		})
	case "combat-initiate":
		if len(args) < 6 {
			fmt.Println("Usage: combat-initiate <caller> <sessionId> <challengerId> <opponentId> <wager>")
			return
		}
		session, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid session id.")
			return
		}
		wager, err := strconv.ParseUint(args[5], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid wager.")
			return
		}
		mutate("zb_initiateCombat", map[string]interface{}{
			"caller": args[1], "sessionId": session,
			"challengerId": args[3], "opponentId": args[4], "wager": wager,
		})
	case "combat-turn":
		if len(args) < 4 {
			fmt.Println("Usage: combat-turn <caller> <sessionId> <abilityIndex>")
			return
		}
		session, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid session id.")
			return
		}
		index, err := strconv.ParseUint(args[3], 10, 8)
		if err != nil {
			fmt.Println("Error: invalid ability index.")
			return
		}
		mutate("zb_combatTurn", map[string]interface{}{
			"caller": args[1], "sessionId": session, "abilityIndex": index,
		})
	case "combat-resolve":
		if len(args) < 3 {
			fmt.Println("Usage: combat-resolve <caller> <sessionId>")
			return
		}
		session, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid session id.")
			return
		}
		mutate("zb_resolveCombat", map[string]interface{}{"caller": args[1], "sessionId": session})
	case "combat":
		if len(args) < 2 {
			fmt.Println("Usage: combat <sessionId>")
			return
		}
		session, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Println("Error: invalid session id.")
			return
		}
		query("zb_getCombat", map[string]interface{}{"sessionId": session})
	case "events":
		params := map[string]interface{}{}
		if len(args) > 1 {
			cursor, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				fmt.Println("Error: invalid cursor.")
				return
			}
			params["cursor"] = cursor
		}
		if len(args) > 2 {
			limit, err := strconv.Atoi(args[2])
			if err != nil {
				fmt.Println("Error: invalid limit.")
				return
			}
			params["limit"] = limit
		}
		query("zb_events", params)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}

	fileName := "wallet.key"
	if err := os.WriteFile(fileName, key.Bytes(), 0o600); err != nil {
		panic(fmt.Sprintf("Failed to save key to %s: %v", fileName, err))
	}

	fmt.Printf("Generated new key and saved to %s\n", fileName)
	fmt.Printf("Your address is: %s\n", key.PubKey().Address().String())
	fmt.Println("Store this file securely; the address above is your caller identity.")
}

// query issues an unauthenticated read and pretty-prints the result.
func query(method string, param interface{}) {
	result, err := callRPC(method, param, false)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printJSONResult(result)
}

// mutate issues an authenticated state transition and pretty-prints the result.
func mutate(method string, param interface{}) {
	result, err := callRPC(method, param, true)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printJSONResult(result)
}

func callRPC(method string, param interface{}, requireAuth bool) (json.RawMessage, error) {
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if param != nil {
		payload["params"] = []interface{}{param}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requireAuth {
		if rpcAuthToken == "" {
			return nil, fmt.Errorf("this command requires ZENBEASTS_RPC_TOKEN to be set")
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int         `json:"code"`
			Message string      `json:"message"`
			Data    interface{} `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node")
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Data != nil {
			return nil, fmt.Errorf("error from node: %s (%v)", rpcResp.Error.Message, rpcResp.Error.Data)
		}
		return nil, fmt.Errorf("error from node: %s", rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func printJSONResult(result json.RawMessage) {
	if len(result) == 0 {
		fmt.Println("No result.")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(buf.String())
}

func printUsage() {
	fmt.Println("ZenBeasts CLI - Usage:")
	fmt.Println("  zb-cli [--rpc <endpoint>] <command> [arguments]")
	fmt.Println()
	fmt.Println("Keys and accounts:")
	fmt.Println("  generate-key                     Generate a new wallet key and print its address")
	fmt.Println("  account <address>                Show token account state")
	fmt.Println("  supply                           Show circulating reward-token supply")
	fmt.Println("  config                           Show the live economy configuration")
	fmt.Println()
	fmt.Println("Beasts:")
	fmt.Println("  beast <beastId>                  Show a beast with rarity tier and claimable rewards")
	fmt.Println("  mint <caller> <name> <seed> [metadataUri]")
	fmt.Println("  activity <caller> <beastId> [activityType]")
	fmt.Println("  claim <caller> <beastId>")
	fmt.Println("  preview-upgrade <beastId> <traitIndex>")
	fmt.Println("  upgrade <caller> <beastId> <traitIndex> <payment>")
	fmt.Println("  preview-breeding <parentA> <parentB>")
	fmt.Println("  breed <caller> <parentA> <parentB> <name> <seed> <payment> [metadataUri]")
	fmt.Println("  transfer <caller> <beastId> <newOwner>")
	fmt.Println()
	fmt.Println("Abilities and combat:")
	fmt.Println("  unlock-ability <caller> <beastId> <slot> <abilityId> <payment>")
	fmt.Println("  upgrade-ability <caller> <beastId> <slot> <payment>")
	fmt.Println("  combat-initiate <caller> <sessionId> <challengerId> <opponentId> <wager>")
	fmt.Println("  combat-turn <caller> <sessionId> <abilityIndex>")
	fmt.Println("  combat-resolve <caller> <sessionId>")
	fmt.Println("  combat <sessionId>")
	fmt.Println()
	fmt.Println("Events:")
	fmt.Println("  events [cursor] [limit]          Page the committed event journal")
	fmt.Println()
	fmt.Println("Mutating commands read the bearer token from ZENBEASTS_RPC_TOKEN.")
	fmt.Println("The RPC endpoint defaults to http://localhost:8080/rpc (override with RPC_URL or --rpc).")
}
