package detect

import "strings"

// bigramWeights lists lowercase letter pairs by how common they are in
// Russian and Ukrainian words, from 9 down to 1. A pair missing from the
// table weighs 0. '^' stands for the start of a word and '$' for its end.
//
// The weights are log-scaled counts over the distinct words of a mixed
// Russian and Ukrainian sample of everyday prose, technical messages and
// common document names.
var bigramWeights = [...]string{
	9: `
		^п ан ва е$ ен ни но ов ра ре ст`,
	8: `
		^в ^д ^з ^к ^н ^о ^р ^с а$ ав ал ат го де ед ел
		ем ер ет за и$ им ис ит й$ ка ко ле ли ль м$ ме
		на не нн ны о$ об ог од ом ор ос по пр ри ро та
		те ти то ть х$ ь$ я$`,
	7: `
		^а ^и ^м ^т ^у ае аз ак ам ар ас аю ая в$ ве ви
		вл вн во вы да ди до ек ес ив ие из ий ик ин ир
		ич ия ки кл кр ла ло ля ма ми мо мы нт ну ня ое
		оз ой ок ол он оп от пе ру си ск сл со сп ся т$
		тв тр тс у$ ую ци ча че чи чн ще щи ы$ ые ый ым
		ых ьн ю$ ющ`,
	6: `
		^б ^г ^л ^ф ^ц ^ч аб аг ад ай ап ах ац ач ащ ба
		бе бл бо бр вк ву ві га гр дн ду ев ег еж ез ей
		ео еп еч же жи жн зв зд зи зм зн зо зу иа ид ии
		ил иф их иц йт к$ ке кс кт ку лн лю мп му мі н$
		нд нс ні ож оч па пи пу р$ рм рн рт ры ря са св
		се сн сс су тк тн ту ты ув уе ук уп ур ус ут фи
		хо це ше ши ыв ьс ют юч яе ям ят яю і$ ід ін`,
	5: `
		^е ^х ^ш ^э ^я ^і аж аи аф аш би бн бу бщ бъ бы
		вр вс вт вя ги гл гн гу д$ дв дк дл дп др дс ді
		еа еб ее еш ещ жа жд зб зе зк зр зы иб иг ио ип
		ию йн йс кв кц л$ лу лі мн нк нь ои оо ош оя пл
		пі рв рж рс рш рі с$ см сы сь тл уб уд уж уз ул
		ум ун уч ущ фе фо хр ці ша ща ъя ыз ып ыт ьз ьт
		эк яв яз ях є$ ів ій іл іс ї$`,
	4: `
		^ж ає бк бс бх бя бі вв вд вз вм вп вш г$ ге дд
		дм ды дя еи еу еф ех ец жу з$ зл иж иш ищ йд кн
		кі лк лл лы мв мк мм нф нх нц нч ню ох оц ою ої
		п$ пн пт пы рг рк рп рх сб ср сх сч сш сі тм тп
		тф тч тя ті уа уг уй ує фа фр фу фі хв хи ца чк
		чт шл шн шо щу ъе ыб ыд ык ыл ыр ыс ыч ыш ьк ьо
		ьш ью эт яд як ял ян яр яц ящ ён єт із ік ім ір
		іт іш ія ії`,
	3: `
		^щ ^ю ^є ау б$ вг вж вх вщ вь гі дж дт дх дц дч
		дш ею ея ж$ жк жл зг зп зш зі йк йл йм йш кз кэ
		лг лж лс лё мб мл мс мя нв нг нз нш нё оу оф ощ
		пк пп пс пц пя рр рф рь сд сф сц тд тт уи уф уш
		уя фл фт фф ха хе хн хс ху хэ ц$ цу цы ць ця ч$
		чл чо чу чш чь чё чі ш$ шк шр шу ші що ыг эл эф
		эш юб юв юд ює яй яс яч яя яє ёр ёт єд єм іа іб
		іг іо іч іщ ію іє`,
	2: `
		^й ^ы ^ё ^ї ^ґ ао аї бд бз бм бц вч вё гд гм дб
		дг дз дь дё еє жб жм жо жі зч зь зя йб йв йе йо
		йп кш лб лт лч мч нє оа оэ оє пь рд рц рч рщ рю
		сг сж сю тб тз тю тё ух ф$ фы хі цв цо цю чр шт
		шь шё щ$ щн щь щё ъё ыж ье ьм ьц ья эн эр юн юр
		юю яг яж яп ё$ ёз ёл ём єн єс єю іх їн їт`,
	1: `
		^ъ ^ь аё аґ бб бв бж бч бю вб гб гв гй гк гт гч
		дф дъ дю еь еэ её еї еґ жп жс жч жы жь жё зж зз
		зс зт зц зю иє иї йр йч кб кж кк км кщ лд лф мт
		мь мё нж нщ оі рб рз рл рё съ сё тш тщ уц уэ уї
		фм хг хл хм цн цп цс цт чж шв щр щі ъ$ ын ыя ьи
		ьч ьщ ьё э$ эм эс эх юг юз юл юм юс яб ёд ёж ёк
		ёп ёс ёш єв єк єл єр єї іж іп іц їв їж їз її ґ$
		ґа ґу`,
}

const maxBigramWeight = 9

var bigramWeight = buildBigramWeights()

func buildBigramWeights() map[[2]rune]float64 {
	m := make(map[[2]rune]float64)
	for w, list := range bigramWeights {
		for _, pair := range strings.Fields(list) {
			r := []rune(pair)
			m[[2]rune{r[0], r[1]}] = float64(w) / maxBigramWeight
		}
	}
	return m
}
